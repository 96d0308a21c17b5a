package observability

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Cetendo/EnergyLogger/internal/ports"
)

func TestPromObsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()

	obs, err := NewPromObs(reg, nil)
	if err != nil {
		t.Fatalf("NewPromObs: %v", err)
	}

	obs.IncCounter(ports.MetricSnapshotsSaved, 5)
	if got := testutil.ToFloat64(obs.counters[ports.MetricSnapshotsSaved]); got != 5 {
		t.Fatalf("expected snapshots counter 5, got %f", got)
	}

	obs.IncCounter(ports.MetricMessagesDropped, 2)
	if got := testutil.ToFloat64(obs.counters[ports.MetricMessagesDropped]); got != 2 {
		t.Fatalf("expected dropped counter 2, got %f", got)
	}

	obs.SetGauge(ports.MetricSessionState, 2)
	if got := testutil.ToFloat64(obs.gauges[ports.MetricSessionState]); got != 2 {
		t.Fatalf("expected session gauge 2, got %f", got)
	}

	obs.ObserveLatency(ports.MetricSaveLatency, 0.5)
	hCollector := obs.histos[ports.MetricSaveLatency].(prometheus.Collector)
	if samples := testutil.CollectAndCount(hCollector); samples != 1 {
		t.Fatalf("expected latency histogram to record 1 sample, got %d", samples)
	}

	obs.IncCounter("unknown_metric", 1)

	if n, err := testutil.GatherAndCount(reg); err != nil || n != 11 {
		t.Fatalf("expected 11 registered metrics, got %d (%v)", n, err)
	}
}

func TestPromObsReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()

	first, err := NewPromObs(reg, nil)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := NewPromObs(reg, nil)
	if err != nil {
		t.Fatalf("second: %v", err)
	}

	first.IncCounter(ports.MetricRequestsSent, 1)
	second.IncCounter(ports.MetricRequestsSent, 1)
	if got := testutil.ToFloat64(first.counters[ports.MetricRequestsSent]); got != 2 {
		t.Fatalf("expected shared counter 2, got %f", got)
	}
}

func TestPromObsLogs(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	obs, err := NewPromObs(prometheus.NewRegistry(), zap.New(core))
	if err != nil {
		t.Fatalf("NewPromObs: %v", err)
	}

	obs.LogInfo("handshake_complete", ports.F("request_id", "12"))
	obs.LogError("snapshot_save_failed", errors.New("disk full"))
	obs.LogCritical("session_failed", errors.New("boom"))

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("expected 3 log entries, got %d", len(entries))
	}
	if entries[0].Message != "handshake_complete" || entries[0].ContextMap()["request_id"] != "12" {
		t.Fatalf("unexpected info entry %+v", entries[0])
	}
	if entries[1].Level != zapcore.ErrorLevel || entries[1].ContextMap()["error"] != "disk full" {
		t.Fatalf("unexpected error entry %+v", entries[1])
	}
	if entries[2].ContextMap()["critical"] != true {
		t.Fatalf("expected critical flag, got %+v", entries[2].ContextMap())
	}
}
