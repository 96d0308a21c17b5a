// Package luxws speaks the heat pump's text-over-WebSocket protocol.
package luxws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Cetendo/EnergyLogger/internal/ports"
)

const (
	// Subprotocol is announced during the upgrade; the controller rejects
	// connections without it.
	Subprotocol = "Lux_WS"
	// DefaultPort is the controller's WebSocket port.
	DefaultPort = 8214
	// DefaultHandshakeTimeout bounds dialing and the HTTP upgrade.
	DefaultHandshakeTimeout = 10 * time.Second
	// WriteTimeout bounds a single command write.
	WriteTimeout = 10 * time.Second
)

// ErrClosed is returned by Send and Receive after Close.
var ErrClosed = errors.New("luxws: connection closed")

// LoginCommand builds the login request for the given password.
func LoginCommand(password string) string { return "LOGIN;" + password }

// GetCommand builds the request for one navigation id.
func GetCommand(id string) string { return "GET;" + id }

// Dialer opens WebSocket sessions to one heat pump.
type Dialer struct {
	URL              string
	HandshakeTimeout time.Duration
	Header           http.Header
}

// NewDialer builds a dialer for ws://address:port.
func NewDialer(address string, port int, handshakeTimeout time.Duration) *Dialer {
	if port <= 0 {
		port = DefaultPort
	}
	if handshakeTimeout <= 0 {
		handshakeTimeout = DefaultHandshakeTimeout
	}
	u := url.URL{Scheme: "ws", Host: net.JoinHostPort(address, strconv.Itoa(port))}
	return &Dialer{URL: u.String(), HandshakeTimeout: handshakeTimeout}
}

// Dial connects and negotiates the Lux_WS subprotocol.
func (d *Dialer) Dial(ctx context.Context) (ports.Conn, error) {
	wd := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.HandshakeTimeout,
		Subprotocols:     []string{Subprotocol},
	}
	ws, resp, err := wd.DialContext(ctx, d.URL, d.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", d.URL, err)
	}
	return newConn(ws), nil
}

// Conn wraps one gorilla connection. Send may be called from any goroutine;
// Receive must only be called by one reader at a time.
type Conn struct {
	ws *websocket.Conn

	writeMu sync.Mutex

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error
}

func newConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws, closed: make(chan struct{})}
}

// Subprotocol reports what the server accepted.
func (c *Conn) Subprotocol() string { return c.ws.Subprotocol() }

// Send writes one text frame.
func (c *Conn) Send(command string) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(WriteTimeout)); err != nil {
		return fmt.Errorf("send %q: %w", command, err)
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, []byte(command)); err != nil {
		return fmt.Errorf("send %q: %w", command, err)
	}
	return nil
}

// Receive returns the next text or binary frame. A cancelled context unblocks
// the read by expiring its deadline; the connection is unusable afterwards.
func (c *Conn) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-c.closed:
		return nil, ErrClosed
	default:
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stop := context.AfterFunc(ctx, func() {
		_ = c.ws.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		kind, payload, err := c.ws.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			select {
			case <-c.closed:
				return nil, ErrClosed
			default:
			}
			return nil, fmt.Errorf("receive: %w", err)
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			return payload, nil
		}
	}
}

// Close sends a close frame when possible and releases the socket. It does
// not wait for a pending Send and is safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

var (
	_ ports.Dialer = (*Dialer)(nil)
	_ ports.Conn   = (*Conn)(nil)
)
