package energylogger

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Flow assembles an EdgeRuntime in reading order: where the config comes
// from, how the heat pump is reached, where snapshots end up.
//
//	rt, err := energylogger.Conf("data/config.yaml").
//		StreamIN(energylogger.StreamInMetrics(reg, logger)).
//		StreamOUT(ctx, energylogger.StreamOutCallback("print", handle))
type Flow struct {
	cfg  *Config
	opts []EdgeRuntimeOption
}

// FlowOption adjusts a Flow right after its config is known.
type FlowOption func(*Flow)

// StreamInOption selects the heat pump side: dialer, metrics, logging.
type StreamInOption func(*Flow)

// StreamOutOption selects the snapshot side: store and sinks.
type StreamOutOption func(*Flow)

// Conf reads the YAML config at path.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return ConfFromConfig(cfg, opts...)
}

// ConfFromConfig starts a Flow from a config that is already parsed.
func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	if cfg == nil {
		return nil, errors.New("energylogger: nil config")
	}
	f := &Flow{cfg: cfg}
	applyAll(f, opts)
	return f, nil
}

// Config exposes the parsed config; changes made before StreamOUT are used.
func (f *Flow) Config() *Config {
	if f == nil {
		return nil
	}
	return f.cfg
}

// Options passes runtime options through unchanged.
func (f *Flow) Options(opts ...EdgeRuntimeOption) *Flow {
	if f == nil {
		return nil
	}
	f.appendOptions(opts...)
	return f
}

// StreamIN configures how the heat pump is polled.
func (f *Flow) StreamIN(opts ...StreamInOption) *Flow {
	if f == nil {
		return nil
	}
	applyAll(f, opts)
	return f
}

// StreamOUT configures where snapshots go and builds the runtime. The store
// is opened and its schema ensured here.
func (f *Flow) StreamOUT(ctx context.Context, opts ...StreamOutOption) (*EdgeRuntime, error) {
	if f == nil {
		return nil, errors.New("energylogger: nil flow")
	}
	applyAll(f, opts)
	return NewEdgeRuntime(ctx, f.cfg, f.opts...)
}

// Run builds the runtime and polls until ctx ends or the session fails.
func (f *Flow) Run(ctx context.Context, opts ...StreamOutOption) error {
	rt, err := f.StreamOUT(ctx, opts...)
	if err != nil {
		return err
	}
	return rt.Run(ctx)
}

// WithFlowOptions adds runtime options at Conf time.
func WithFlowOptions(opts ...EdgeRuntimeOption) FlowOption {
	return func(f *Flow) {
		if f != nil {
			f.appendOptions(opts...)
		}
	}
}

func applyAll[O ~func(*Flow)](f *Flow, opts []O) {
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
}

// StreamInDialer replaces the Lux_WS dialer, e.g. with a simulator.
func StreamInDialer(d Dialer) StreamInOption {
	return func(f *Flow) {
		if f != nil && d != nil {
			f.appendOptions(WithDialer(d))
		}
	}
}

// StreamInObservability replaces the Prometheus and zap backend.
func StreamInObservability(obs Observability) StreamInOption {
	return func(f *Flow) {
		if f != nil && obs != nil {
			f.appendOptions(WithObservability(obs))
		}
	}
}

// StreamInMetrics registers the default metrics on reg and logs through l.
func StreamInMetrics(reg prometheus.Registerer, l *zap.Logger) StreamInOption {
	return func(f *Flow) {
		if f == nil {
			return
		}
		if reg != nil {
			f.appendOptions(WithRegisterer(reg))
		}
		if l != nil {
			f.appendOptions(WithLogger(l))
		}
	}
}

// StreamOutSink sends snapshots to s instead of, or with StreamOutStore
// alongside, the SQL store.
func StreamOutSink(s Sink) StreamOutOption {
	return func(f *Flow) {
		if f != nil && s != nil {
			f.appendOptions(WithSink(s))
		}
	}
}

// StreamOutStore writes to an already opened store.
func StreamOutStore(s Store) StreamOutOption {
	return func(f *Flow) {
		if f != nil && s != nil {
			f.appendOptions(WithStore(s))
		}
	}
}

// StreamOutCallback hands every snapshot to fn.
func StreamOutCallback(name string, fn SnapshotHandler) StreamOutOption {
	return func(f *Flow) {
		if f != nil {
			f.appendOptions(WithSink(NewCallbackSink(name, fn)))
		}
	}
}

func (f *Flow) appendOptions(opts ...EdgeRuntimeOption) {
	for _, opt := range opts {
		if opt != nil {
			f.opts = append(f.opts, opt)
		}
	}
}
