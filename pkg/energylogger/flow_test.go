package energylogger

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Cetendo/EnergyLogger/internal/adapters/observability"
)

func TestConfFromConfigAndStreamBuilder(t *testing.T) {
	cfg := testConfig(t)

	flow, err := ConfFromConfig(cfg)
	if err != nil {
		t.Fatalf("ConfFromConfig returned error: %v", err)
	}
	if flow.Config() != cfg {
		t.Fatalf("expected Config to be returned verbatim")
	}

	dialer := &scriptedDialer{}
	sink := NewCallbackSink("builder", func(context.Context, Snapshot) error { return nil })

	rt, err := flow.
		StreamIN(
			StreamInDialer(dialer),
			StreamInObservability(observability.Nop{}),
		).
		StreamOUT(context.Background(), StreamOutSink(sink))
	if err != nil {
		t.Fatalf("StreamOUT returned error: %v", err)
	}
	if rt.dialer != dialer {
		t.Fatalf("expected custom dialer to be wired")
	}
	if rt.sink != sink {
		t.Fatalf("expected custom sink to be wired")
	}
	if _, ok := rt.obs.(observability.Nop); !ok {
		t.Fatalf("expected custom observability to be wired, got %T", rt.obs)
	}
	if rt.Store() != nil {
		t.Fatalf("expected no store when a sink replaces it")
	}
}

func TestStreamInMetrics(t *testing.T) {
	cfg := testConfig(t)
	reg := prometheus.NewRegistry()

	flow, err := ConfFromConfig(cfg, WithFlowOptions(WithDialer(&scriptedDialer{})))
	if err != nil {
		t.Fatalf("ConfFromConfig: %v", err)
	}
	rt, err := flow.
		StreamIN(StreamInMetrics(reg, zap.NewNop())).
		StreamOUT(context.Background(), StreamOutCallback("cb", func(context.Context, Snapshot) error { return nil }))
	if err != nil {
		t.Fatalf("StreamOUT: %v", err)
	}
	if rt.gatherer != reg {
		t.Fatalf("expected registry to back the metrics endpoint")
	}
	families, err := reg.Gather()
	if err != nil || len(families) == 0 {
		t.Fatalf("expected metrics on custom registry, got %d (%v)", len(families), err)
	}
}

func TestStoreAndSinkCombine(t *testing.T) {
	cfg := testConfig(t)
	base, err := NewEdgeRuntime(context.Background(), cfg, WithRegisterer(prometheus.NewRegistry()))
	if err != nil {
		t.Fatalf("NewEdgeRuntime: %v", err)
	}
	defer base.Shutdown(context.Background())

	extra := NewCallbackSink("extra", func(context.Context, Snapshot) error { return nil })
	rt, err := NewEdgeRuntime(context.Background(), cfg,
		WithStore(base.Store()),
		WithSink(extra),
		WithObservability(observability.Nop{}),
	)
	if err != nil {
		t.Fatalf("NewEdgeRuntime: %v", err)
	}
	if rt.ownsStore {
		t.Fatalf("a supplied store must not be owned")
	}
	if got := rt.sink.Name(); got != "multi(sqlite,extra)" {
		t.Fatalf("unexpected sink %s", got)
	}
}

func TestNilFlow(t *testing.T) {
	var f *Flow
	if f.Config() != nil || f.StreamIN() != nil || f.Options() != nil {
		t.Fatal("nil flow helpers should return nil")
	}
	if _, err := f.StreamOUT(context.Background()); err == nil {
		t.Fatal("expected error from nil flow")
	}
	if _, err := ConfFromConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}
