package energylogger

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cetendo/EnergyLogger/internal/adapters/observability"
	"github.com/Cetendo/EnergyLogger/internal/adapters/store"
	"github.com/Cetendo/EnergyLogger/internal/app/session"
	"github.com/Cetendo/EnergyLogger/internal/domain"
)

const (
	navDoc = `<Navigation id="0x1"><item id="0x2a"><name>Informationen</name>` +
		`<item id="0x2b"><name>Temperaturen</name></item></item></Navigation>`
	contentDoc = `<Content><item id="1"><name>Temperaturen</name>` +
		`<item id="2"><name>Vorlauf</name><value>45.3</value></item>` +
		`<item id="3"><name>Rücklauf</name><value>38,0</value></item></item>` +
		`<item id="4"><name>Fehlerspeicher</name><item id="5"><name>Fehler</name><value>x</value></item></item></Content>`
)

// scriptedConn answers LOGIN with navigation and GET with content.
type scriptedConn struct {
	incoming  chan []byte
	closeOnce sync.Once
	closed    chan struct{}
	gets      atomic.Int32
}

func newScriptedConn() *scriptedConn {
	return &scriptedConn{incoming: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *scriptedConn) Send(cmd string) error {
	switch {
	case strings.HasPrefix(cmd, "LOGIN;"):
		c.push(navDoc)
	case cmd == "GET;0x2a":
		c.gets.Add(1)
		c.push(contentDoc)
	}
	return nil
}

func (c *scriptedConn) push(doc string) {
	select {
	case c.incoming <- []byte(doc):
	default:
	}
}

func (c *scriptedConn) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, io.EOF
	case p := <-c.incoming:
		return p, nil
	}
}

func (c *scriptedConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

type scriptedDialer struct {
	failures atomic.Int32
	dials    atomic.Int32
}

func (d *scriptedDialer) Dial(context.Context) (Conn, error) {
	d.dials.Add(1)
	if d.failures.Load() > 0 {
		d.failures.Add(-1)
		return nil, errors.New("connection refused")
	}
	return newScriptedConn(), nil
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := ParseConfig([]byte(`
heatpump:
  address: 127.0.0.1
  reconnect_delay: 5ms
  import_values:
    Temperaturen: {}
settings:
  update_interval: 20ms
storage:
  purge_on_start: false
metrics:
  disabled: true
`))
	require.NoError(t, err)
	cfg.Storage.DSN = filepath.Join(t.TempDir(), "energy.db")
	return cfg
}

func TestRuntimeEndToEndCallback(t *testing.T) {
	cfg := testConfig(t)

	var (
		mu    sync.Mutex
		snaps []Snapshot
	)
	rt, err := NewEdgeRuntime(context.Background(), cfg,
		WithDialer(&scriptedDialer{}),
		WithObservability(observability.Nop{}),
		WithSink(NewCallbackSink("test", func(_ context.Context, s Snapshot) error {
			mu.Lock()
			snaps = append(snaps, s)
			mu.Unlock()
			return nil
		})),
	)
	require.NoError(t, err)
	assert.Nil(t, rt.Store())

	done := make(chan error, 1)
	go func() { done <- rt.Run(context.Background()) }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(snaps) >= 2
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	first := snaps[0]
	mu.Unlock()
	v, _ := first["Temperaturen"].Fields.Get("Rücklauf")
	assert.Equal(t, "38,0", v)
	_, hasErrors := first["Fehlerspeicher"]
	assert.False(t, hasErrors)

	require.NoError(t, rt.Shutdown(context.Background()))
	require.NoError(t, <-done)
	require.NoError(t, rt.Shutdown(context.Background()))
	assert.ErrorIs(t, rt.Run(context.Background()), ErrRuntimeClosed)
}

func TestRuntimeEndToEndSQLite(t *testing.T) {
	cfg := testConfig(t)
	rt, err := NewEdgeRuntime(context.Background(), cfg,
		WithDialer(&scriptedDialer{}),
		WithRegisterer(prometheus.NewRegistry()),
	)
	require.NoError(t, err)
	require.NotNil(t, rt.Store())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx) }()

	require.Eventually(t, func() bool { return rt.Totals().Snapshots >= 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	st, err := store.Open(context.Background(), "sqlite", cfg.Storage.DSN)
	require.NoError(t, err)
	defer st.Close()

	latest, err := st.Latest(context.Background(), "Temperaturen", 1)
	require.NoError(t, err)
	rows := latest["temperaturen"]
	require.Len(t, rows, 1)
	assert.Equal(t, 45.3, rows[0].Values["vorlauf"])
	assert.Equal(t, 38.0, rows[0].Values["ruecklauf"])
}

func TestRuntimeReconnects(t *testing.T) {
	cfg := testConfig(t)
	dialer := &scriptedDialer{}
	dialer.failures.Store(2)

	var saved atomic.Int32
	rt, err := NewEdgeRuntime(context.Background(), cfg,
		WithDialer(dialer),
		WithObservability(observability.Nop{}),
		WithSink(NewCallbackSink("count", func(context.Context, Snapshot) error {
			saved.Add(1)
			return nil
		})),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx) }()

	require.Eventually(t, func() bool { return saved.Load() >= 1 }, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, dialer.dials.Load(), int32(3))

	cancel()
	require.NoError(t, <-done)
}

func TestRuntimeWithoutReconnectReturnsTransportError(t *testing.T) {
	cfg := testConfig(t)
	zero := time.Duration(0)
	cfg.HeatPump.ReconnectDelay = &zero

	dialer := &scriptedDialer{}
	dialer.failures.Store(1)

	rt, err := NewEdgeRuntime(context.Background(), cfg,
		WithDialer(dialer),
		WithObservability(observability.Nop{}),
		WithSink(NewCallbackSink("noop", func(context.Context, Snapshot) error { return nil })),
	)
	require.NoError(t, err)

	err = rt.Run(context.Background())
	assert.ErrorIs(t, err, session.ErrTransport)
}

func TestRuntimePurgeOnStart(t *testing.T) {
	cfg := testConfig(t)
	yes := true
	cfg.Storage.PurgeOnStart = &yes
	cfg.Storage.Retention = time.Hour

	now := time.Now()
	st, err := store.Open(context.Background(), "sqlite", cfg.Storage.DSN,
		store.WithClock(func() time.Time { return now.Add(-2 * time.Hour) }))
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.EnsureSchema(context.Background()))
	_, err = st.SaveSnapshot(context.Background(), Snapshot{
		"Temperaturen": {Fields: domain.FieldMapOf("Vorlauf", "1")},
	})
	require.NoError(t, err)

	live, err := store.Open(context.Background(), "sqlite", cfg.Storage.DSN)
	require.NoError(t, err)
	defer live.Close()

	rt, err := NewEdgeRuntime(context.Background(), cfg,
		WithDialer(&scriptedDialer{}),
		WithStore(live),
		WithObservability(observability.Nop{}),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx) }()

	require.Eventually(t, func() bool { return rt.Totals().Snapshots >= 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	latest, err := live.Latest(context.Background(), "temperaturen", 100)
	require.NoError(t, err)
	for _, r := range latest["temperaturen"] {
		assert.Greater(t, r.Timestamp, now.Add(-time.Hour).Unix()-1)
	}
}

func TestMetricsEndpoints(t *testing.T) {
	cfg := testConfig(t)
	reg := prometheus.NewRegistry()
	rt, err := NewEdgeRuntime(context.Background(), cfg,
		WithDialer(&scriptedDialer{}),
		WithRegisterer(reg),
		WithSink(NewCallbackSink("noop", func(context.Context, Snapshot) error { return nil })),
	)
	require.NoError(t, err)

	srv := httptest.NewServer(rt.metricsServer().Handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "energylogger_snapshots_saved_total")
}

func TestNewEdgeRuntimeRequiresConfig(t *testing.T) {
	_, err := NewEdgeRuntime(context.Background(), nil)
	assert.Error(t, err)
}
