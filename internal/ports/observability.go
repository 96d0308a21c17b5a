package ports

type Observability interface {
	LogInfo(msg string, fields ...Field)
	LogError(msg string, err error, fields ...Field)
	LogCritical(msg string, err error, fields ...Field)

	IncCounter(name string, v float64)
	ObserveLatency(name string, seconds float64)

	SetGauge(name string, v float64)
}

type Field struct {
	Key   string
	Value any
}

// F builds a Field.
func F(key string, value any) Field { return Field{Key: key, Value: value} }

// Metric names understood by the default observability backend.
const (
	MetricMessagesReceived = "energylogger_messages_received_total"
	MetricMessagesDropped  = "energylogger_messages_dropped_total"
	MetricRequestsSent     = "energylogger_requests_sent_total"
	MetricSnapshotsSaved   = "energylogger_snapshots_saved_total"
	MetricCategoriesSaved  = "energylogger_categories_saved_total"
	MetricSaveFailures     = "energylogger_save_failures_total"
	MetricSecondaryFailure = "energylogger_secondary_sink_failures_total"
	MetricRowsPurged       = "energylogger_rows_purged_total"
	MetricSessionState     = "energylogger_session_state"
	MetricLastSnapshot     = "energylogger_last_snapshot_timestamp_seconds"
	MetricSaveLatency      = "energylogger_save_latency_seconds"
)
