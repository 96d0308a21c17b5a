package energylogger

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Cetendo/EnergyLogger/internal/adapters/luxws"
	"github.com/Cetendo/EnergyLogger/internal/adapters/observability"
	"github.com/Cetendo/EnergyLogger/internal/adapters/store"
	"github.com/Cetendo/EnergyLogger/internal/app/pipeline"
	"github.com/Cetendo/EnergyLogger/internal/app/session"
	"github.com/Cetendo/EnergyLogger/internal/ports"
)

// ErrRuntimeClosed is returned by Run after Shutdown.
var ErrRuntimeClosed = errors.New("energylogger: runtime closed")

// EdgeRuntimeOption customizes the dependencies used by EdgeRuntime.
type EdgeRuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	dialer        Dialer
	sinks         []Sink
	store         Store
	observability Observability
	registerer    prometheus.Registerer
	gatherer      prometheus.Gatherer
	logger        *zap.Logger
}

// WithDialer replaces the WebSocket transport, e.g. with a simulator.
func WithDialer(d Dialer) EdgeRuntimeOption {
	return func(o *runtimeOverrides) {
		o.dialer = d
	}
}

// WithSink sends snapshots to s. Without WithStore, sinks replace the SQL
// store entirely; with it, they receive a copy after the store.
func WithSink(s Sink) EdgeRuntimeOption {
	return func(o *runtimeOverrides) {
		if s != nil {
			o.sinks = append(o.sinks, s)
		}
	}
}

// WithStore supplies an already opened store. The runtime does not close it.
func WithStore(s Store) EdgeRuntimeOption {
	return func(o *runtimeOverrides) {
		o.store = s
	}
}

// WithObservability plugs in a custom observability backend.
func WithObservability(obs Observability) EdgeRuntimeOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

// WithRegisterer registers the default metrics on reg instead of the global
// registry. When reg is also a Gatherer it backs the /metrics endpoint.
func WithRegisterer(reg prometheus.Registerer) EdgeRuntimeOption {
	return func(o *runtimeOverrides) {
		o.registerer = reg
		if g, ok := reg.(prometheus.Gatherer); ok {
			o.gatherer = g
		}
	}
}

// WithLogger sets the logger of the default observability backend.
func WithLogger(l *zap.Logger) EdgeRuntimeOption {
	return func(o *runtimeOverrides) {
		o.logger = l
	}
}

// EdgeRuntime wires the transport → session → pipeline → store chain and
// exposes lifecycle hooks for embedding the logger inside any Go service.
type EdgeRuntime struct {
	cfg       *Config
	obs       ports.Observability
	dialer    ports.Dialer
	store     ports.Store
	ownsStore bool
	sink      ports.Sink
	pipeline  *pipeline.IngestPipeline
	gatherer  prometheus.Gatherer

	mu      sync.Mutex
	cancel  context.CancelFunc
	ctrl    *session.Controller
	running bool
	stopped bool
	done    chan struct{}

	releaseOnce sync.Once
	releaseErr  error
}

// NewEdgeRuntime bootstraps the default adapters (WebSocket dialer, SQL
// store, Prometheus observability). EdgeRuntimeOption values override any of
// them.
func NewEdgeRuntime(ctx context.Context, cfg *Config, opts ...EdgeRuntimeOption) (*EdgeRuntime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	obs := overrides.observability
	if obs == nil {
		prom, err := observability.NewPromObs(overrides.registerer, overrides.logger)
		if err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
		obs = prom
	}

	gatherer := overrides.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	dialer := overrides.dialer
	if dialer == nil {
		dialer = luxws.NewDialer(cfg.HeatPump.Address, cfg.HeatPump.Port, cfg.HeatPump.ConnectTimeout)
	}

	var (
		st    ports.Store
		owns  bool
		sinks []ports.Sink
	)
	switch {
	case overrides.store != nil:
		st = overrides.store
		sinks = append([]ports.Sink{st}, overrides.sinks...)
	case len(overrides.sinks) > 0:
		sinks = overrides.sinks
	default:
		opened, err := store.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN)
		if err != nil {
			return nil, err
		}
		if err := opened.EnsureSchema(ctx); err != nil {
			opened.Close()
			return nil, err
		}
		st, owns = opened, true
		sinks = []ports.Sink{opened}
	}

	snk := sinks[0]
	if len(sinks) > 1 {
		snk = MultiSink(sinks[0], sinks[1:]...)
	}

	return &EdgeRuntime{
		cfg:       cfg,
		obs:       obs,
		dialer:    dialer,
		store:     st,
		ownsStore: owns,
		sink:      snk,
		pipeline:  pipeline.NewIngestPipeline(cfg.HeatPump.ImportValues, snk, obs),
		gatherer:  gatherer,
		done:      make(chan struct{}),
	}, nil
}

// Store returns the SQL store, or nil when only custom sinks are used.
func (e *EdgeRuntime) Store() Store { return e.store }

// Totals reports what has been saved since the runtime started.
func (e *EdgeRuntime) Totals() SaveResult { return e.pipeline.Totals() }

// Run purges expired rows when configured, starts the metrics server, and
// keeps a heat pump session alive until ctx is cancelled or Shutdown is
// called. Sessions that fail are retried after the reconnect delay; with a
// zero delay the first failure ends Run.
func (e *EdgeRuntime) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.stopped || e.running {
		e.mu.Unlock()
		return ErrRuntimeClosed
	}
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.running = true
	e.mu.Unlock()
	defer close(e.done)
	defer cancel()

	if e.store != nil && e.cfg.PurgeOnStartEnabled() {
		if _, err := e.Purge(ctx, e.cfg.Storage.Retention); err != nil {
			e.obs.LogError("purge_failed", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if !e.cfg.Metrics.Disabled && e.cfg.Metrics.Addr != "" {
		srv := e.metricsServer()
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	g.Go(func() error {
		err := e.sessionLoop(gctx)
		cancel()
		return err
	})

	err := g.Wait()
	e.stop()
	return errors.Join(err, e.release())
}

func (e *EdgeRuntime) sessionLoop(ctx context.Context) error {
	delay := e.cfg.ReconnectDelayOrDefault()
	for {
		ctrl := session.New(e.cfg.SessionConfig(), e.dialer, e.pipeline, e.obs)
		e.mu.Lock()
		if e.stopped {
			e.mu.Unlock()
			return nil
		}
		e.ctrl = ctrl
		e.mu.Unlock()

		err := ctrl.Run(ctx)
		if ctx.Err() != nil || errors.Is(err, session.ErrClosed) {
			return nil
		}
		if delay <= 0 {
			return err
		}

		e.obs.LogError("session_ended", err,
			ports.F("session", ctrl.ID()),
			ports.F("retry_in", delay.String()))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// Purge deletes rows older than horizon from the store.
func (e *EdgeRuntime) Purge(ctx context.Context, horizon time.Duration) (int64, error) {
	if e.store == nil {
		return 0, fmt.Errorf("no store configured")
	}
	n, err := e.store.PurgeOlderThan(ctx, horizon)
	if err != nil {
		return 0, err
	}
	e.obs.IncCounter(ports.MetricRowsPurged, float64(n))
	e.obs.LogInfo("purge_complete", ports.F("rows", n), ports.F("horizon", horizon.String()))
	return n, nil
}

// Shutdown stops the session, waits for Run to return, and closes the store
// the runtime opened. It is safe to call more than once.
func (e *EdgeRuntime) Shutdown(ctx context.Context) error {
	running := e.stop()

	var errs []error
	if running {
		select {
		case <-e.done:
		case <-ctx.Done():
			errs = append(errs, ctx.Err())
		}
	}
	errs = append(errs, e.release())
	return errors.Join(errs...)
}

// stop cancels Run and closes the live session. It reports whether Run was
// started.
func (e *EdgeRuntime) stop() bool {
	e.mu.Lock()
	e.stopped = true
	cancel, ctrl, running := e.cancel, e.ctrl, e.running
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if ctrl != nil {
		_ = ctrl.Close()
	}
	return running
}

func (e *EdgeRuntime) release() error {
	e.releaseOnce.Do(func() {
		if e.ownsStore && e.store != nil {
			e.releaseErr = e.store.Close()
		}
	})
	return e.releaseErr
}

func (e *EdgeRuntime) metricsServer() *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &http.Server{
		Addr:              e.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
