package energylogger

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	base "github.com/Cetendo/EnergyLogger/pkg/energylogger"
)

// Re-exported errors for convenience.
var (
	ErrChannelSinkClosed = base.ErrChannelSinkClosed
	ErrRuntimeClosed     = base.ErrRuntimeClosed
	ErrNoContent         = base.ErrNoContent
)

// Type aliases so consumers can import github.com/Cetendo/EnergyLogger directly.
type (
	Config             = base.Config
	HeatPumpConfig     = base.HeatPumpConfig
	SettingsConfig     = base.SettingsConfig
	StorageConfig      = base.StorageConfig
	MetricsConfig      = base.MetricsConfig
	LogConfig          = base.LogConfig
	Flow               = base.Flow
	FlowOption         = base.FlowOption
	StreamInOption     = base.StreamInOption
	StreamOutOption    = base.StreamOutOption
	EdgeRuntime        = base.EdgeRuntime
	EdgeRuntimeOption  = base.EdgeRuntimeOption
	ExternalPublisher  = base.ExternalPublisher
	Snapshot           = base.Snapshot
	CategoryReading    = base.CategoryReading
	FieldMap           = base.FieldMap
	SaveResult         = base.SaveResult
	Row                = base.Row
	TableStats         = base.TableStats
	FilterRule         = base.FilterRule
	ImportValues       = base.ImportValues
	Node               = base.Node
	SnapshotHandler    = base.SnapshotHandler
	Sink               = base.Sink
	SecondarySinkError = base.SecondarySinkError
	Store              = base.Store
	Dialer             = base.Dialer
	Conn               = base.Conn
	Observability      = base.Observability
	Field              = base.Field
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func ParseConfig(raw []byte) (*Config, error) {
	return base.ParseConfig(raw)
}

func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	return base.NewLogger(cfg)
}

// Flow builder helpers.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	return base.Conf(path, opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	return base.ConfFromConfig(cfg, opts...)
}

func WithFlowOptions(opts ...EdgeRuntimeOption) FlowOption {
	return base.WithFlowOptions(opts...)
}

func StreamInDialer(d Dialer) StreamInOption {
	return base.StreamInDialer(d)
}

func StreamInObservability(obs Observability) StreamInOption {
	return base.StreamInObservability(obs)
}

func StreamInMetrics(reg prometheus.Registerer, l *zap.Logger) StreamInOption {
	return base.StreamInMetrics(reg, l)
}

func StreamOutSink(s Sink) StreamOutOption {
	return base.StreamOutSink(s)
}

func StreamOutStore(s Store) StreamOutOption {
	return base.StreamOutStore(s)
}

func StreamOutCallback(name string, fn SnapshotHandler) StreamOutOption {
	return base.StreamOutCallback(name, fn)
}

// Edge runtime and options.
func NewEdgeRuntime(ctx context.Context, cfg *Config, opts ...EdgeRuntimeOption) (*EdgeRuntime, error) {
	return base.NewEdgeRuntime(ctx, cfg, opts...)
}

func WithDialer(d Dialer) EdgeRuntimeOption {
	return base.WithDialer(d)
}

func WithSink(s Sink) EdgeRuntimeOption {
	return base.WithSink(s)
}

func WithStore(s Store) EdgeRuntimeOption {
	return base.WithStore(s)
}

func WithObservability(obs Observability) EdgeRuntimeOption {
	return base.WithObservability(obs)
}

func WithRegisterer(reg prometheus.Registerer) EdgeRuntimeOption {
	return base.WithRegisterer(reg)
}

func WithLogger(l *zap.Logger) EdgeRuntimeOption {
	return base.WithLogger(l)
}

// Sink adapters.
func NewCallbackSink(name string, fn SnapshotHandler) Sink {
	return base.NewCallbackSink(name, fn)
}

func NewChannelSink(name string, buffer int) (Sink, <-chan Snapshot, func()) {
	return base.NewChannelSink(name, buffer)
}

func MultiSink(primary Sink, others ...Sink) Sink {
	return base.MultiSink(primary, others...)
}

// External publisher.
func NewExternalPublisher(known ImportValues, sink Sink, obs Observability) (*ExternalPublisher, error) {
	return base.NewExternalPublisher(known, sink, obs)
}
