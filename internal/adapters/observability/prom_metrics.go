package observability

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Cetendo/EnergyLogger/internal/ports"
)

// PromObs logs through zap and records Prometheus metrics by name.
type PromObs struct {
	logger   *zap.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

// NewPromObs registers the logger's metrics on reg (the default registerer
// when nil). Collectors that are already registered are reused, so several
// runtimes can share one registry.
func NewPromObs(reg prometheus.Registerer, logger *zap.Logger) (*PromObs, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &PromObs{
		logger:   logger,
		counters: make(map[string]prometheus.Counter),
		gauges:   make(map[string]prometheus.Gauge),
		histos:   make(map[string]prometheus.Observer),
	}

	counters := []prometheus.CounterOpts{
		{Name: ports.MetricMessagesReceived, Help: "Frames received from the heat pump."},
		{Name: ports.MetricMessagesDropped, Help: "Frames that could not be decoded."},
		{Name: ports.MetricRequestsSent, Help: "GET requests sent to the heat pump."},
		{Name: ports.MetricSnapshotsSaved, Help: "Snapshots committed to storage."},
		{Name: ports.MetricCategoriesSaved, Help: "Category rows committed to storage."},
		{Name: ports.MetricSaveFailures, Help: "Snapshots that failed to persist."},
		{Name: ports.MetricSecondaryFailure, Help: "Committed snapshots that a secondary sink rejected."},
		{Name: ports.MetricRowsPurged, Help: "Rows deleted by retention."},
	}
	for _, opts := range counters {
		c, err := register(reg, prometheus.NewCounter(opts))
		if err != nil {
			return nil, err
		}
		p.counters[opts.Name] = c
	}

	gauges := []prometheus.GaugeOpts{
		{Name: ports.MetricSessionState, Help: "Session state: 0 disconnected, 1 connected, 2 subscribed."},
		{Name: ports.MetricLastSnapshot, Help: "Unix time of the last committed snapshot."},
	}
	for _, opts := range gauges {
		g, err := register(reg, prometheus.NewGauge(opts))
		if err != nil {
			return nil, err
		}
		p.gauges[opts.Name] = g
	}

	latency, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    ports.MetricSaveLatency,
		Help:    "Time spent committing one snapshot.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	}))
	if err != nil {
		return nil, err
	}
	p.histos[ports.MetricSaveLatency] = latency

	return p, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, err
	}
	return c, nil
}

// Logger exposes the underlying zap logger.
func (p *PromObs) Logger() *zap.Logger { return p.logger }

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.logger.Info(msg, zapFields(fields)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	p.logger.Error(msg, append(zapFields(fields), zap.Error(err))...)
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	p.logger.Error(msg, append(zapFields(fields), zap.Error(err), zap.Bool("critical", true))...)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func zapFields(fields []ports.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+2)
	for _, f := range fields {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}

// Nop discards everything.
type Nop struct{}

func (Nop) LogInfo(string, ...ports.Field)            {}
func (Nop) LogError(string, error, ...ports.Field)    {}
func (Nop) LogCritical(string, error, ...ports.Field) {}
func (Nop) IncCounter(string, float64)                {}
func (Nop) ObserveLatency(string, float64)            {}
func (Nop) SetGauge(string, float64)                  {}

var (
	_ ports.Observability = (*PromObs)(nil)
	_ ports.Observability = Nop{}
)
