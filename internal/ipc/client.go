package ipc

import (
	"fmt"
	"net"
	"sync"
	"time"

	"veil/internal/engine"
	"veil/internal/winapi"
)

// Client is a synchronous IPC client for the veild control socket. A
// client issues one request at a time; concurrent callers are serialized.
type Client struct {
	mu      sync.Mutex
	conn    net.Conn
	nextID  uint32
	timeout time.Duration
}

// DefaultTimeout is the per-request deadline.
const DefaultTimeout = 10 * time.Second

// Dial connects to the daemon socket.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon at %s: %w", socketPath, err)
	}
	return &Client{conn: conn, timeout: DefaultTimeout}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}

// roundTrip sends a request and reads the matching response. An error
// response from the daemon is surfaced as an *ErrorResponse error.
func (c *Client) roundTrip(msgType MessageType, req any) (*Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID

	msg, err := Encode(msgType, id, req)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(c.timeout)
	c.conn.SetDeadline(deadline)

	if err := msg.Write(c.conn); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	resp, err := ReadMessage(c.conn)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.Header.RequestID != id {
		return nil, fmt.Errorf("response id mismatch: sent %d, got %d", id, resp.Header.RequestID)
	}

	if resp.Header.Type == MsgError {
		var errResp ErrorResponse
		if err := resp.Decode(&errResp); err != nil {
			return nil, fmt.Errorf("daemon error (undecodable): %w", err)
		}
		return nil, &errResp
	}
	return resp, nil
}

// Ping checks daemon liveness.
func (c *Client) Ping() error {
	resp, err := c.roundTrip(MsgPing, nil)
	if err != nil {
		return err
	}
	if resp.Header.Type != MsgPong {
		return fmt.Errorf("unexpected response type %#x", resp.Header.Type)
	}
	return nil
}

// ListWindows fetches the visible top-level windows.
func (c *Client) ListWindows() ([]winapi.WindowInfo, error) {
	resp, err := c.roundTrip(MsgListWindows, nil)
	if err != nil {
		return nil, err
	}
	var list ListWindowsResponse
	if err := resp.Decode(&list); err != nil {
		return nil, err
	}
	return list.Windows, nil
}

// Select marks a window as the toggle target.
func (c *Client) Select(handle uint64) error {
	_, err := c.roundTrip(MsgSelect, &HandleRequest{Handle: handle})
	return err
}

// SetOpacity applies an opacity percent to a window.
func (c *Client) SetOpacity(handle uint64, percent int) error {
	_, err := c.roundTrip(MsgSetOpacity, &OpacityRequest{Handle: handle, Percent: percent})
	return err
}

// SetClickThrough applies passthrough state to a window.
func (c *Client) SetClickThrough(handle uint64, enable, lock bool) error {
	_, err := c.roundTrip(MsgSetClickThrough, &ClickThroughRequest{
		Handle: handle,
		Enable: enable,
		Lock:   lock,
	})
	return err
}

// RemoveTopmost drops a window out of the always-on-top band.
func (c *Client) RemoveTopmost(handle uint64) error {
	_, err := c.roundTrip(MsgRemoveTopmost, &HandleRequest{Handle: handle})
	return err
}

// Restore returns one window to its original state.
func (c *Client) Restore(handle uint64) error {
	_, err := c.roundTrip(MsgRestore, &HandleRequest{Handle: handle})
	return err
}

// RestoreAll returns every tracked window to its original state.
func (c *Client) RestoreAll() error {
	_, err := c.roundTrip(MsgRestoreAll, nil)
	return err
}

// GetRecord reads the tracked state of one window.
func (c *Client) GetRecord(handle uint64) (*engine.View, error) {
	resp, err := c.roundTrip(MsgGetRecord, &HandleRequest{Handle: handle})
	if err != nil {
		return nil, err
	}
	var rec RecordResponse
	if err := resp.Decode(&rec); err != nil {
		return nil, err
	}
	if !rec.Found {
		return nil, nil
	}
	return &rec.Record, nil
}

// Status reads the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	resp, err := c.roundTrip(MsgStatus, nil)
	if err != nil {
		return nil, err
	}
	var status StatusResponse
	if err := resp.Decode(&status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Shutdown asks the daemon to restore all windows and exit.
func (c *Client) Shutdown() error {
	_, err := c.roundTrip(MsgShutdown, nil)
	return err
}
