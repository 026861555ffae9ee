package websocket

import (
	"context"
	"sync"

	"github.com/HuyaneMatsu/scarletio/core"
)

// ContextManager is a lazy, single-use WebSocket connection wrapper,
// grounded on web_socket_context_manager.py's WebSocketContextManager: it
// wraps a connecting coroutine that only runs once, on first use, and knows
// how to close the connection it produced. Go has no async context manager
// protocol, so Use plays the role of `async with`.
type ContextManager struct {
	loop *core.Loop
	url  string
	opts []Option

	mu     sync.Mutex
	client *Client
}

// ConnectWebSocket returns a ContextManager that connects to rawURL on
// first use, mirroring HTTPClient.connect_web_socket.
func ConnectWebSocket(loop *core.Loop, rawURL string, opts ...Option) *ContextManager {
	return &ContextManager{loop: loop, url: rawURL, opts: opts}
}

// Connect dials the connection if it hasn't been made yet, and returns the
// (possibly already-connected) Client. Safe to call more than once; only
// the first call actually dials.
func (m *ContextManager) Connect(ctx context.Context) (*Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil {
		return m.client, nil
	}
	client, err := Dial(ctx, m.loop, m.url, m.opts...)
	if err != nil {
		return nil, err
	}
	m.client = client
	return client, nil
}

// Close closes the wrapped connection, if one was made. A no-op otherwise.
func (m *ContextManager) Close(ctx context.Context) error {
	m.mu.Lock()
	client := m.client
	m.client = nil
	m.mu.Unlock()
	if client == nil {
		return nil
	}
	return client.Close(ctx, CloseNormalClosure, "")
}

// Use connects, runs fn with the Client, and closes the connection
// afterward regardless of fn's outcome — the Go equivalent of:
//
//	async with http_client.connect_web_socket(url) as web_socket:
//	    ...
func (m *ContextManager) Use(ctx context.Context, fn func(*Client) error) error {
	client, err := m.Connect(ctx)
	if err != nil {
		return err
	}
	defer m.Close(ctx)
	return fn(client)
}
