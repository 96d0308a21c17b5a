// Package session drives one connection to the heat pump: login, the
// navigation handshake, and the periodic content requests.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Cetendo/EnergyLogger/internal/adapters/luxws"
	"github.com/Cetendo/EnergyLogger/internal/adapters/markup"
	"github.com/Cetendo/EnergyLogger/internal/domain"
	"github.com/Cetendo/EnergyLogger/internal/ports"
)

var (
	// ErrTransport wraps every dial, send and receive failure.
	ErrTransport = errors.New("session: transport failure")
	// ErrClosed is returned by Run once Close has been called.
	ErrClosed = errors.New("session: closed")
)

const (
	DefaultPassword       = "0"
	DefaultRequestLabel   = "Informationen"
	DefaultUpdateInterval = 5 * time.Second
)

// State is the handshake progress of a session.
type State int32

const (
	Disconnected State = iota
	Connected
	Subscribed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case Subscribed:
		return "subscribed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Ingester consumes content messages.
type Ingester interface {
	Ingest(ctx context.Context, content []domain.Node) domain.SaveResult
}

// Config controls the handshake.
type Config struct {
	Password       string
	RequestLabel   string
	UpdateInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Password == "" {
		c.Password = DefaultPassword
	}
	if c.RequestLabel == "" {
		c.RequestLabel = DefaultRequestLabel
	}
	if c.UpdateInterval <= 0 {
		c.UpdateInterval = DefaultUpdateInterval
	}
	return c
}

// Controller runs a single session. Messages and timer ticks are handled by
// one goroutine, so the ingester is never called concurrently.
type Controller struct {
	cfg    Config
	dialer ports.Dialer
	ingest Ingester
	obs    ports.Observability
	id     string

	state     atomic.Int32
	requestID atomic.Value

	mu     sync.Mutex
	conn   ports.Conn
	cancel context.CancelFunc

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error
}

func New(cfg Config, dialer ports.Dialer, ingest Ingester, obs ports.Observability) *Controller {
	c := &Controller{
		cfg:    cfg.withDefaults(),
		dialer: dialer,
		ingest: ingest,
		obs:    obs,
		id:     uuid.NewString(),
		closed: make(chan struct{}),
	}
	c.requestID.Store("")
	return c
}

// ID identifies the session in logs.
func (c *Controller) ID() string { return c.id }

func (c *Controller) State() State { return State(c.state.Load()) }

// RequestID is the navigation id found during the handshake, or "".
func (c *Controller) RequestID() string { return c.requestID.Load().(string) }

func (c *Controller) setState(s State) {
	c.state.Store(int32(s))
	c.obs.SetGauge(ports.MetricSessionState, float64(s))
}

type frame struct {
	payload []byte
	err     error
}

// Run connects, logs in and serves the session until ctx ends, Close is
// called, or the transport fails. Transport faults are wrapped in
// ErrTransport; a closed controller returns ErrClosed.
func (c *Controller) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	select {
	case <-c.closed:
		c.mu.Unlock()
		return ErrClosed
	default:
	}
	c.cancel = cancel
	c.mu.Unlock()

	conn, err := c.dialer.Dial(ctx)
	if err != nil {
		if c.isClosed() {
			return ErrClosed
		}
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}

	c.mu.Lock()
	if c.isClosed() {
		c.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}
	c.conn = conn
	c.mu.Unlock()

	frames := make(chan frame)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.readLoop(ctx, conn, frames)
	}()

	defer func() {
		cancel()
		_ = conn.Close()
		wg.Wait()
		c.setState(Disconnected)
	}()

	if err := conn.Send(luxws.LoginCommand(c.cfg.Password)); err != nil {
		return c.fault(err)
	}
	c.setState(Connected)
	c.obs.LogInfo("session_connected", ports.F("session", c.id))

	var (
		ticker *time.Ticker
		tick   <-chan time.Time
	)
	// Runs before the transport is closed, so no tick can fire after a fault.
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			if c.isClosed() {
				return ErrClosed
			}
			return ctx.Err()

		case <-tick:
			if err := c.request(conn); err != nil {
				return c.fault(err)
			}

		case f := <-frames:
			if f.err != nil {
				if c.isClosed() {
					return ErrClosed
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return c.fault(f.err)
			}

			subscribe, err := c.handle(ctx, conn, f.payload)
			if err != nil {
				return c.fault(err)
			}
			if subscribe && ticker == nil {
				ticker = time.NewTicker(c.cfg.UpdateInterval)
				tick = ticker.C
			}
		}
	}
}

func (c *Controller) readLoop(ctx context.Context, conn ports.Conn, frames chan<- frame) {
	for {
		payload, err := conn.Receive(ctx)
		select {
		case frames <- frame{payload: payload, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

// handle processes one frame. It reports true when the handshake completed
// on this frame.
func (c *Controller) handle(ctx context.Context, conn ports.Conn, payload []byte) (bool, error) {
	c.obs.IncCounter(ports.MetricMessagesReceived, 1)

	msg, err := markup.Decode(payload)
	if err != nil {
		c.obs.IncCounter(ports.MetricMessagesDropped, 1)
		c.obs.LogError("message_dropped", err,
			ports.F("session", c.id),
			ports.F("bytes", len(payload)))
		return false, nil
	}

	if msg.HasContent() {
		c.ingest.Ingest(ctx, msg.Content)
	}

	if !msg.HasNavigation() || c.RequestID() != "" {
		return false, nil
	}

	id, ok := findEntry(msg.Navigation, c.cfg.RequestLabel)
	if !ok {
		c.obs.LogInfo("handshake_pending",
			ports.F("session", c.id),
			ports.F("label", c.cfg.RequestLabel))
		return false, nil
	}

	c.requestID.Store(id)
	if err := c.request(conn); err != nil {
		return false, err
	}
	c.setState(Subscribed)
	c.obs.LogInfo("handshake_complete",
		ports.F("session", c.id),
		ports.F("request_id", id),
		ports.F("interval", c.cfg.UpdateInterval.String()))
	return true, nil
}

func findEntry(entries []domain.NavEntry, label string) (string, bool) {
	for _, e := range entries {
		if e.Name == label && e.ID != "" {
			return e.ID, true
		}
	}
	return "", false
}

func (c *Controller) request(conn ports.Conn) error {
	if err := conn.Send(luxws.GetCommand(c.RequestID())); err != nil {
		return err
	}
	c.obs.IncCounter(ports.MetricRequestsSent, 1)
	return nil
}

func (c *Controller) fault(err error) error {
	c.obs.LogError("session_transport_failed", err, ports.F("session", c.id))
	return fmt.Errorf("%w: %w", ErrTransport, err)
}

func (c *Controller) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Close stops Run and closes the transport. It is safe to call more than
// once and from any goroutine.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		close(c.closed)
		cancel, conn := c.cancel, c.conn
		c.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if conn != nil {
			c.closeErr = conn.Close()
		}
	})
	return c.closeErr
}
