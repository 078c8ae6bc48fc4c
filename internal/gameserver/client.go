package gameserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Default write queue / timeout constants.
// Overridden by config values when available.
const (
	defaultSendQueueSize = 256
	defaultWriteTimeout  = 5 * time.Second
	defaultReadTimeout   = 60 * time.Second
	maxMessageSize       = 4096
)

// ErrSendQueueFull is returned by Send when a slow client is disconnected.
var ErrSendQueueFull = errors.New("send queue full")

// ErrClientClosed is returned when sending to a closed client.
var ErrClientClosed = errors.New("client closed")

// wsConn is the subset of *websocket.Conn used by GameClient.
type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
	RemoteAddr() net.Addr
	Close() error
}

// Compile-time check.
var _ wsConn = (*websocket.Conn)(nil)

// GameClient represents a single WebSocket connection to the arena server.
// Its ID doubles as the participant ID inside rooms.
type GameClient struct {
	conn wsConn
	id   string
	ip   string

	// state использует atomic.Int32 для lock-free reads в hot path
	state atomic.Int32

	// mu защищает только account и expiresAt
	mu        sync.Mutex
	account   string
	expiresAt time.Time

	// Per-client write queue of encoded JSON frames.
	sendCh    chan []byte
	closeCh   chan struct{}
	closeOnce sync.Once

	writeTimeout time.Duration
	readTimeout  time.Duration
}

// NewGameClient creates a client for an upgraded connection.
func NewGameClient(conn wsConn, sendQueueSize int, writeTimeout, readTimeout time.Duration) *GameClient {
	if sendQueueSize <= 0 {
		sendQueueSize = defaultSendQueueSize
	}
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}

	ip := ""
	if addr := conn.RemoteAddr(); addr != nil {
		ip = addr.String()
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
	}

	c := &GameClient{
		conn:         conn,
		id:           uuid.New().String(),
		ip:           ip,
		sendCh:       make(chan []byte, sendQueueSize),
		closeCh:      make(chan struct{}),
		writeTimeout: writeTimeout,
		readTimeout:  readTimeout,
	}
	c.state.Store(int32(ClientStateConnected))
	return c
}

// ID returns the connection ID.
func (c *GameClient) ID() string {
	return c.id
}

// IP returns the client's remote IP address.
func (c *GameClient) IP() string {
	return c.ip
}

// State returns the current connection state.
func (c *GameClient) State() ClientConnectionState {
	return ClientConnectionState(c.state.Load())
}

// SetState sets the connection state.
func (c *GameClient) SetState(s ClientConnectionState) {
	c.state.Store(int32(s))
}

// Account returns the authenticated account, or "".
func (c *GameClient) Account() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.account
}

// Authenticate binds account to the connection and moves it to
// ClientStateAuthenticated.
func (c *GameClient) Authenticate(account string, expiresAt time.Time) {
	c.mu.Lock()
	c.account = account
	c.expiresAt = expiresAt
	c.mu.Unlock()
	c.state.CompareAndSwap(int32(ClientStateConnected), int32(ClientStateAuthenticated))
}

// IsAuthenticated reports whether the client holds an unexpired identity.
func (c *GameClient) IsAuthenticated() bool {
	if c.State() != ClientStateAuthenticated {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.account != "" && time.Now().Before(c.expiresAt)
}

// readPump reads frames until the connection fails, passing each payload to fn.
// Pong frames extend the read deadline.
func (c *GameClient) readPump(fn func([]byte)) error {
	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
		return fmt.Errorf("setting read deadline: %w", err)
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return err
		}
		if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return fmt.Errorf("setting read deadline: %w", err)
		}
		fn(payload)
	}
}

// writePump is a dedicated writer goroutine for this client.
// Reads frames from sendCh and writes them as text messages; pings the peer
// so that idle connections are detected by the read deadline.
//
// Pattern: Gorilla WebSocket Chat.
func (c *GameClient) writePump() {
	// Пинг чаще, чем истекает read deadline у клиента.
	ping := time.NewTicker(c.readTimeout * 9 / 10)
	defer ping.Stop()

	for {
		select {
		case frame, ok := <-c.sendCh:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				slog.Warn("set write deadline failed", "client", c.id, "error", err)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				slog.Warn("write failed", "client", c.id, "error", err)
				return
			}

		case <-ping.C:
			deadline := time.Now().Add(c.writeTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				slog.Debug("ping failed", "client", c.id, "error", err)
				return
			}

		case <-c.closeCh:
			c.flush()
			return
		}
	}
}

// flush writes whatever is still queued after CloseAsync, best effort.
func (c *GameClient) flush() {
	deadline := time.Now().Add(c.writeTimeout)
	for {
		select {
		case frame := <-c.sendCh:
			if err := c.conn.SetWriteDeadline(deadline); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		default:
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = c.conn.WriteControl(websocket.CloseMessage, msg, deadline)
			return
		}
	}
}

// Send queues an encoded frame for async delivery.
// Non-blocking: returns ErrSendQueueFull if the queue is full (slow client → disconnect).
func (c *GameClient) Send(frame []byte) error {
	select {
	case <-c.closeCh:
		return ErrClientClosed
	default:
	}

	select {
	case c.sendCh <- frame:
		return nil
	default:
		slog.Warn("send queue full, disconnecting slow client", "client", c.id, "account", c.Account())
		c.CloseAsync()
		return ErrSendQueueFull
	}
}

// SendEvent encodes {"type": event, "data": data} and queues it.
func (c *GameClient) SendEvent(event string, data any) error {
	frame, err := encodeFrame(event, data)
	if err != nil {
		return err
	}
	return c.Send(frame)
}

// SendSync queues a frame and blocks until accepted or timeout.
// Used for responses that MUST be delivered.
func (c *GameClient) SendSync(frame []byte, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case c.sendCh <- frame:
		return nil
	case <-timer.C:
		return fmt.Errorf("send timeout after %v", timeout)
	case <-c.closeCh:
		return ErrClientClosed
	}
}

// CloseAsync signals the writePump to stop without blocking.
// Safe to call multiple times.
func (c *GameClient) CloseAsync() {
	c.closeOnce.Do(func() {
		c.state.Store(int32(ClientStateDisconnected))
		close(c.closeCh)
	})
}

// Done is closed once the client starts closing.
func (c *GameClient) Done() <-chan struct{} {
	return c.closeCh
}

// Close closes the connection and stops the writePump.
func (c *GameClient) Close() error {
	c.CloseAsync()
	return c.conn.Close()
}

func encodeFrame(event string, data any) ([]byte, error) {
	frame, err := json.Marshal(outbound{Type: event, Data: data})
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", event, err)
	}
	return frame, nil
}
