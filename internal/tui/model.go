// Package tui is the terminal host for the playback engine. The bubbletea
// model renders what the engine reports and turns key presses into gestures.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/orgball2608/moments-player/internal/domain"
	apperrors "github.com/orgball2608/moments-player/pkg/errors"
	"github.com/orgball2608/moments-player/pkg/formatter"
	"github.com/samber/lo"
)

const loadTimeout = 5 * time.Second

// Controller receives gestures from the model. Implementations must not
// block: the model calls them from bubbletea's update loop.
type Controller interface {
	ScrollTo(index int)
	SetFocused(focused bool)
	ToggleMute()
	ToggleHold()
	Like(itemID string)
	OpenStories(items []domain.StoryItem)
	StoryTap(forward bool)
	ToggleStoryPause()
	CloseStories()
}

// StoryLoader fetches the story collection opened by the stories key.
type StoryLoader func(ctx context.Context) ([]domain.StoryItem, error)

type view int

const (
	viewFeed view = iota
	viewStories
)

type storyView struct {
	item     domain.StoryItem
	index    int
	total    int
	progress float64
	paused   bool
}

type ModelOpts struct {
	Controller  Controller
	LoadStories StoryLoader
	Items       []domain.FeedItem
	Muted       bool
	// StoryLength is how long one story item takes to count down.
	StoryLength time.Duration
}

type Model struct {
	ctl         Controller
	loadStories StoryLoader
	keys        keyMap
	help        help.Model
	bar         progress.Model
	storyLength time.Duration

	width  int
	height int

	items     []domain.FeedItem
	current   int
	ratio     float64
	hasRatio  bool
	muted     bool
	indicator bool
	holding   bool
	liked     map[string]bool

	view  view
	story storyView

	status    string
	statusErr bool
	quitting  bool
}

func NewModel(opts ModelOpts) Model {
	return Model{
		ctl:         opts.Controller,
		loadStories: opts.LoadStories,
		keys:        defaultKeyMap(),
		help:        help.New(),
		bar:         progress.New(progress.WithGradient("#F77737", "#E1306C"), progress.WithoutPercentage()),
		storyLength: opts.StoryLength,
		items:       opts.Items,
		muted:       opts.Muted,
		liked:       make(map[string]bool),
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.bar.Width = min(max(msg.Width-12, 10), 60)
		return m, nil

	case tea.FocusMsg:
		m.ctl.SetFocused(true)
		return m, nil

	case tea.BlurMsg:
		m.ctl.SetFocused(false)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case feedIndexMsg:
		if msg.index != m.current {
			m.current = msg.index
			m.hasRatio = false
			m.holding = false
		}
		return m, nil

	case feedProgressMsg:
		if msg.index == m.current {
			m.ratio = msg.ratio
			m.hasRatio = true
		}
		return m, nil

	case muteMsg:
		m.muted = msg.muted
		return m, nil

	case holdMsg:
		m.holding = msg.held
		return m, nil

	case indicatorMsg:
		m.indicator = msg.visible
		m.muted = msg.muted
		return m, nil

	case likedMsg:
		m.handleLiked(msg)
		return m, nil

	case storiesLoadedMsg:
		if len(msg.items) == 0 {
			m.setStatus("No active stories", false)
			return m, nil
		}
		m.view = viewStories
		m.story = storyView{total: len(msg.items), item: msg.items[0]}
		m.ctl.OpenStories(msg.items)
		return m, nil

	case storyIndexMsg:
		m.story.index = msg.index
		m.story.total = msg.total
		m.story.item = msg.item
		m.story.progress = 0
		// Skipping resumes a paused session.
		m.story.paused = false
		return m, nil

	case storyProgressMsg:
		if msg.index == m.story.index {
			m.story.progress = msg.progress
		}
		return m, nil

	case storyExitMsg:
		m.view = viewFeed
		m.story = storyView{}
		return m, nil

	case errMsg:
		m.setStatus(msg.err.Error(), true)
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}

	if m.view == viewStories {
		return m.handleStoryKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Next):
		m.scrollTo(m.current + 1)
	case key.Matches(msg, m.keys.Prev):
		m.scrollTo(m.current - 1)
	case key.Matches(msg, m.keys.Mute):
		m.ctl.ToggleMute()
	case key.Matches(msg, m.keys.Hold):
		if len(m.items) > 0 {
			m.ctl.ToggleHold()
		}
	case key.Matches(msg, m.keys.Like):
		if item, ok := m.currentItem(); ok {
			m.ctl.Like(item.ID)
		}
	case key.Matches(msg, m.keys.Stories):
		if m.loadStories != nil {
			m.setStatus("Loading stories…", false)
			return m, m.fetchStories()
		}
	}
	return m, nil
}

func (m Model) handleStoryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.StoryNext):
		m.ctl.StoryTap(true)
	case key.Matches(msg, m.keys.StoryPrev):
		m.ctl.StoryTap(false)
	case key.Matches(msg, m.keys.StoryPause):
		m.story.paused = !m.story.paused
		m.ctl.ToggleStoryPause()
	case key.Matches(msg, m.keys.Like):
		if m.story.item.ID != "" {
			m.ctl.Like(m.story.item.ID)
		}
	case key.Matches(msg, m.keys.StoryClose):
		m.ctl.CloseStories()
	}
	return m, nil
}

func (m *Model) scrollTo(index int) {
	if index < 0 || index >= len(m.items) || index == m.current {
		return
	}
	m.current = index
	m.hasRatio = false
	m.holding = false
	m.ctl.ScrollTo(index)
}

func (m *Model) handleLiked(msg likedMsg) {
	switch {
	case msg.err == nil:
		m.liked[msg.itemID] = true
		status := "Liked"
		if item, ok := lo.Find(m.items, func(it domain.FeedItem) bool { return it.ID == msg.itemID }); ok {
			status = fmt.Sprintf("Liked · %s likes", formatter.FormatNumber(item.LikeCount+1))
		}
		m.setStatus(status, false)
	case apperrors.IsRateLimited(msg.err):
		m.setStatus("Slow down, too many likes", true)
	default:
		m.setStatus("Like failed: "+msg.err.Error(), true)
	}
}

func (m *Model) setStatus(status string, isErr bool) {
	m.status = status
	m.statusErr = isErr
}

func (m Model) currentItem() (domain.FeedItem, bool) {
	if m.current < 0 || m.current >= len(m.items) {
		return domain.FeedItem{}, false
	}
	return m.items[m.current], true
}

func (m Model) fetchStories() tea.Cmd {
	load := m.loadStories
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()

		items, err := load(ctx)
		if err != nil {
			return errMsg{err: fmt.Errorf("failed to load stories: %w", err)}
		}
		return storiesLoadedMsg{items: items}
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var body string
	if m.view == viewStories {
		body = m.renderStory()
	} else {
		body = m.renderFeed()
	}

	sections := []string{headerStyle.Render("moments"), body}
	if m.status != "" {
		style := statusStyle
		if m.statusErr {
			style = errorStyle
		}
		sections = append(sections, style.Render(m.status))
	}

	var helpView string
	if m.view == viewStories {
		helpView = m.help.View(storyHelp{keys: m.keys})
	} else {
		helpView = m.help.View(feedHelp{keys: m.keys})
	}
	sections = append(sections, helpView)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderFeed() string {
	item, ok := m.currentItem()
	if !ok {
		return cardStyle.Render(dimStyle.Render("The feed is empty"))
	}

	heart := "♡"
	likes := item.LikeCount
	if m.liked[item.ID] {
		heart = likedStyle.Render("♥")
		likes++
	}

	var bar string
	if m.hasRatio {
		bar = m.bar.ViewAs(m.ratio)
	} else {
		bar = dimStyle.Render("loading…")
	}

	var flags []string
	if m.indicator {
		if m.muted {
			flags = append(flags, indicatorStyle.Render("🔇 muted"))
		} else {
			flags = append(flags, indicatorStyle.Render("🔊 sound on"))
		}
	} else if m.muted {
		flags = append(flags, dimStyle.Render("muted"))
	}
	if m.holding {
		flags = append(flags, dimStyle.Render("held"))
	}

	lines := []string{
		ownerStyle.Render("@"+item.OwnerName) + "  " + dimStyle.Render(fmt.Sprintf("%d/%d", m.current+1, len(m.items))),
		captionStyle.Render(item.Caption),
		"",
		bar,
		fmt.Sprintf("%s %s   💬 %s", heart, formatter.FormatCompact(likes), formatter.FormatCompact(item.CommentCount)),
	}
	if len(flags) > 0 {
		lines = append(lines, strings.Join(flags, "  "))
	}
	return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m Model) renderStory() string {
	s := m.story
	elapsed := time.Duration(s.progress * float64(m.storyLength))

	segments := make([]string, s.total)
	for i := range segments {
		switch {
		case i < s.index:
			segments[i] = "━"
		case i == s.index:
			segments[i] = likedStyle.Render("━")
		default:
			segments[i] = dimStyle.Render("━")
		}
	}

	state := formatter.FormatClock(elapsed) + " / " + formatter.FormatClock(m.storyLength)
	if s.paused {
		state += "  " + indicatorStyle.Render("paused")
	}

	lines := []string{
		strings.Join(segments, " "),
		ownerStyle.Render("@" + s.item.OwnerName),
		dimStyle.Render(fmt.Sprintf("story %d of %d", s.index+1, s.total)),
		"",
		m.bar.ViewAs(s.progress),
		state,
	}
	return storyCardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
