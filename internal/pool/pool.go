// Package pool owns the decode handles of the rendered feed window.
package pool

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"slices"
	"time"

	"github.com/orgball2608/moments-player/internal/decoder"
	"github.com/orgball2608/moments-player/internal/domain"
	"github.com/orgball2608/moments-player/internal/eventloop"
	apperrors "github.com/orgball2608/moments-player/pkg/errors"
	"github.com/orgball2608/moments-player/pkg/logger"
	"github.com/samber/lo"
)

var ErrIndexOutOfRange = errors.New("feed index out of range")

const defaultOpTimeout = 2 * time.Second

// Runner runs blocking work off the loop. *ants.Pool satisfies it.
type Runner interface {
	Submit(task func()) error
}

type Opts struct {
	Factory decoder.Factory
	Poster  eventloop.Poster
	// Runner opens handles off the loop. Nil opens inline, which only suits
	// backends whose Open returns at once.
	Runner    Runner
	Items     []domain.FeedItem
	OpTimeout time.Duration
	Logger    logger.Logger
}

// Pool maps feed indices to lazily opened handles. It is not safe for
// concurrent use; the event loop owns it.
type Pool struct {
	factory   decoder.Factory
	poster    eventloop.Poster
	runner    Runner
	items     []domain.FeedItem
	opTimeout time.Duration
	logger    logger.Logger

	entries map[int]*Entry
	onReady func(index int)
}

func New(opts Opts) *Pool {
	timeout := opts.OpTimeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	return &Pool{
		factory:   opts.Factory,
		poster:    opts.Poster,
		runner:    opts.Runner,
		items:     opts.Items,
		opTimeout: timeout,
		logger:    opts.Logger.WithComponent("PlayerPool"),
		entries:   make(map[int]*Entry),
	}
}

// OnReady registers a hook run on the loop when an entry's media loads.
func (p *Pool) OnReady(fn func(index int)) {
	p.onReady = fn
}

func (p *Pool) Len() int {
	return len(p.entries)
}

// Items is the feed this pool is bound to.
func (p *Pool) Items() []domain.FeedItem {
	return p.items
}

func (p *Pool) Get(index int) (*Entry, bool) {
	e, ok := p.entries[index]
	return e, ok
}

// Acquire returns the entry for index, opening a handle on first use. With a
// Runner the entry comes back before its handle; calls made meanwhile are
// recorded and replayed when the handle attaches. A backend that fails to
// open leaves an entry with no handle.
func (p *Pool) Acquire(ctx context.Context, index int) (*Entry, error) {
	if index < 0 || index >= len(p.items) {
		return nil, fmt.Errorf("acquire %d of %d: %w", index, len(p.items), ErrIndexOutOfRange)
	}
	if e, ok := p.entries[index]; ok {
		return e, nil
	}

	item := p.items[index]
	e := &Entry{pool: p, Index: index, ItemID: item.ID}
	p.entries[index] = e

	if p.runner == nil {
		h, err := p.open(ctx, item.MediaURI, p.readyFunc(e))
		p.attach(e, h, err)
		return e, nil
	}

	e.opening = true
	err := p.runner.Submit(func() {
		h, err := p.open(ctx, item.MediaURI, p.readyFunc(e))
		if ctx.Err() != nil {
			// The owner closed while the handle was opening.
			if h != nil {
				e.guard("close", h.Close)
			}
			return
		}
		p.poster.Post(func() { p.attach(e, h, err) })
	})
	if err != nil {
		e.opening = false
		p.logger.Warn("Failed to schedule decoder open",
			"index", index,
			"item_id", item.ID,
			"error", apperrors.WrapWithCode(err, apperrors.CodeDecoderOpen, "open decoder"),
		)
	}
	return e, nil
}

// attach binds an opened handle to e on the loop.
func (p *Pool) attach(e *Entry, h decoder.Handle, err error) {
	replay := e.opening
	e.opening = false

	if err != nil {
		p.logger.Warn("Failed to open decoder",
			"index", e.Index,
			"item_id", e.ItemID,
			"error", apperrors.WrapWithCode(err, apperrors.CodeDecoderOpen, "open decoder"),
		)
		return
	}
	if e.released {
		e.guard("close", h.Close)
		return
	}
	e.handle = h
	p.logger.Debug("Acquired handle", "index", e.Index, "item_id", e.ItemID)

	if replay {
		e.replay()
	}
}

func (p *Pool) open(ctx context.Context, uri string, ready func()) (h decoder.Handle, err error) {
	ctx, cancel := context.WithTimeout(ctx, p.opTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in Open: %v", r)
			p.logger.Error("Panic recovered in decoder open", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	return p.factory.Open(ctx, uri, ready)
}

// readyFunc hops a backend readiness signal onto the loop.
func (p *Pool) readyFunc(e *Entry) func() {
	return func() {
		p.poster.Post(func() {
			if e.released {
				return
			}
			e.Ready = true
			if p.onReady != nil {
				p.onReady(e.Index)
			}
		})
	}
}

// Release pauses and closes the handle at index. Unknown indices are a no-op.
func (p *Pool) Release(ctx context.Context, index int) {
	e, ok := p.entries[index]
	if !ok {
		return
	}
	delete(p.entries, index)

	if e.Playing {
		e.Pause(ctx)
	}
	e.close()
	p.logger.Debug("Released handle", "index", index)
}

// Retain keeps exactly the entries in [first, last], clamped to the feed, and
// returns the ones it had to open.
func (p *Pool) Retain(ctx context.Context, first, last int) []*Entry {
	if len(p.items) == 0 {
		p.Close(ctx)
		return nil
	}
	first = lo.Clamp(first, 0, len(p.items)-1)
	last = lo.Clamp(last, first, len(p.items)-1)

	for _, index := range p.indices() {
		if index < first || index > last {
			p.Release(ctx, index)
		}
	}

	var added []*Entry
	for index := first; index <= last; index++ {
		if _, ok := p.entries[index]; ok {
			continue
		}
		e, err := p.Acquire(ctx, index)
		if err != nil {
			continue
		}
		added = append(added, e)
	}
	return added
}

// ForEach visits live entries in feed order.
func (p *Pool) ForEach(fn func(e *Entry)) {
	for _, index := range p.indices() {
		if e, ok := p.entries[index]; ok {
			fn(e)
		}
	}
}

// Playing returns the indices whose entries are recorded as playing.
func (p *Pool) Playing() []int {
	var out []int
	p.ForEach(func(e *Entry) {
		if e.Playing {
			out = append(out, e.Index)
		}
	})
	return out
}

// Close releases every entry.
func (p *Pool) Close(ctx context.Context) {
	for _, index := range p.indices() {
		p.Release(ctx, index)
	}
}

func (p *Pool) indices() []int {
	keys := lo.Keys(p.entries)
	slices.Sort(keys)
	return keys
}
