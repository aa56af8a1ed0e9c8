// Package mpvimpl backs every decode handle with its own mpv process,
// controlled over mpv's JSON IPC socket.
package mpvimpl

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/orgball2608/moments-player/internal/decoder"
	"github.com/orgball2608/moments-player/pkg/config"
	"github.com/orgball2608/moments-player/pkg/logger"
	"github.com/orgball2608/moments-player/pkg/retry"
	"go.uber.org/fx"
)

const (
	readyPollInterval = 100 * time.Millisecond
	quitGrace         = 3 * time.Second
)

type Opts struct {
	fx.In

	Config *config.Config
	Logger logger.Logger
}

type Factory struct {
	binary      string
	logger      logger.Logger
	socketRetry retry.Config
}

var _ decoder.Factory = (*Factory)(nil)

func New(opts Opts) *Factory {
	return &Factory{
		binary: opts.Config.Player.MpvPath,
		logger: opts.Logger.WithComponent("MpvDecoder"),
		socketRetry: retry.Config{
			MaxRetries:      10,
			InitialInterval: 100 * time.Millisecond,
			MaxInterval:     500 * time.Millisecond,
			Multiplier:      1.5,
		},
	}
}

func args(socketPath string) []string {
	return []string{
		"--no-terminal",
		"--really-quiet",
		fmt.Sprintf("--input-ipc-server=%s", socketPath),
		"--idle=yes",
		"--pause=yes",
		"--keep-open=yes",
		"--loop-file=inf",
	}
}

// Open starts a paused mpv instance and loads uri into it. ready fires once
// mpv reports a duration for the file.
func (f *Factory) Open(ctx context.Context, uri string, ready func()) (decoder.Handle, error) {
	socketPath := filepath.Join(os.TempDir(), fmt.Sprintf("moments-%s.sock", uuid.NewString()))

	cmd := exec.Command(f.binary, args(socketPath)...)
	cmd.SysProcAttr = sysProcAttr()
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Stdin = nil

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start mpv: %w", err)
	}

	h := &Handle{
		client: &ipcClient{socketPath: socketPath},
		cmd:    cmd,
		logger: f.logger,
		exited: make(chan struct{}),
		closed: make(chan struct{}),
	}
	go func() {
		_ = cmd.Wait()
		close(h.exited)
	}()

	if err := f.waitForSocket(ctx, h); err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("mpv socket not ready: %w", err)
	}

	// An empty source leaves mpv idle; it never reports a duration.
	if uri == "" {
		return h, nil
	}

	if _, err := h.client.send(ctx, "loadfile", uri, "replace"); err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("load %s: %w", uri, err)
	}

	go h.watchReady(ready)
	return h, nil
}

func (f *Factory) waitForSocket(ctx context.Context, h *Handle) error {
	return retry.Do(ctx, f.logger, "mpv_socket", func() error {
		select {
		case <-h.exited:
			return retry.Permanent(fmt.Errorf("mpv exited before socket was ready"))
		default:
		}

		conn, err := net.Dial("unix", h.client.socketPath)
		if err != nil {
			return err
		}
		return conn.Close()
	}, f.socketRetry)
}

type Handle struct {
	client *ipcClient
	cmd    *exec.Cmd
	logger logger.Logger

	exited    chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

var _ decoder.Handle = (*Handle)(nil)

func (h *Handle) watchReady(ready func()) {
	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.closed:
			return
		case <-h.exited:
			return
		case <-ticker.C:
			_, ok, err := h.client.floatProperty(context.Background(), "duration")
			if err != nil || !ok {
				continue
			}
			if ready != nil {
				ready()
			}
			return
		}
	}
}

func (h *Handle) Play(ctx context.Context) error {
	return h.client.setProperty(ctx, "pause", false)
}

func (h *Handle) Pause(ctx context.Context) error {
	return h.client.setProperty(ctx, "pause", true)
}

func (h *Handle) SetMuted(ctx context.Context, muted bool) error {
	return h.client.setProperty(ctx, "mute", muted)
}

func (h *Handle) Status(ctx context.Context) (decoder.Status, error) {
	dur, ok, err := h.client.floatProperty(ctx, "duration")
	if err != nil || !ok {
		return decoder.Status{}, err
	}
	pos, _, err := h.client.floatProperty(ctx, "time-pos")
	if err != nil {
		return decoder.Status{}, err
	}
	return decoder.Status{Position: seconds(pos), Duration: seconds(dur)}, nil
}

// Close asks mpv to quit and returns; the process is reaped in the
// background and killed if it lingers.
func (h *Handle) Close() error {
	h.closeOnce.Do(func() {
		close(h.closed)

		ctx, cancel := context.WithTimeout(context.Background(), defaultIPCTimeout)
		_, _ = h.client.send(ctx, "quit")
		cancel()

		if h.cmd == nil {
			_ = os.Remove(h.client.socketPath)
			return
		}
		go h.reap()
	})
	return nil
}

func (h *Handle) reap() {
	select {
	case <-h.exited:
	case <-time.After(quitGrace):
		h.logger.Warn("Killing mpv after quit timeout", "socket", h.client.socketPath)
		_ = killProcess(h.cmd)
	}
	_ = os.Remove(h.client.socketPath)
}
