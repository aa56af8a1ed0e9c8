package mpvimpl

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"
)

const defaultIPCTimeout = time.Second

var errPropertyUnavailable = errors.New("property unavailable")

type ipcCommand struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

type ipcResponse struct {
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error"`
	RequestID int64           `json:"request_id"`
	Event     string          `json:"event"`
}

var requestSeq atomic.Int64

// ipcClient talks to one mpv instance. Every command uses its own
// connection; mpv broadcasts events to all clients, so replies are matched
// by request_id.
type ipcClient struct {
	socketPath string
}

func (c *ipcClient) send(ctx context.Context, command ...any) (json.RawMessage, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultIPCTimeout)
		defer cancel()
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	id := requestSeq.Add(1)
	payload, err := json.Marshal(ipcCommand{Command: command, RequestID: id})
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	if _, err := conn.Write(append(payload, '\n')); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var resp ipcResponse
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			return nil, fmt.Errorf("unmarshal: %w", err)
		}
		if resp.Event != "" || resp.RequestID != id {
			continue
		}
		switch resp.Error {
		case "", "success":
			return resp.Data, nil
		case errPropertyUnavailable.Error():
			return nil, errPropertyUnavailable
		default:
			return nil, fmt.Errorf("mpv error: %s", resp.Error)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return nil, fmt.Errorf("read: connection closed before reply")
}

func (c *ipcClient) setProperty(ctx context.Context, name string, value any) error {
	_, err := c.send(ctx, "set_property", name, value)
	return err
}

// floatProperty returns ok=false when mpv has no value for name yet.
func (c *ipcClient) floatProperty(ctx context.Context, name string) (v float64, ok bool, err error) {
	data, err := c.send(ctx, "get_property", name)
	if errors.Is(err, errPropertyUnavailable) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if len(data) == 0 || string(data) == "null" {
		return 0, false, nil
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return 0, false, fmt.Errorf("decode %s: %w", name, err)
	}
	return v, true, nil
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
