package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Cetendo/EnergyLogger/internal/domain"
	"github.com/Cetendo/EnergyLogger/internal/ports"
)

func leaf(name, value string) domain.Node {
	return domain.Leaf{Name: name, Values: []string{value}}
}

func section(name string, children ...domain.Node) domain.Node {
	return domain.Section{Name: name, Children: children}
}

func informationen() []domain.Node {
	return []domain.Node{
		section("Temperaturen", leaf("Vorlauf", "45.3"), leaf("Rücklauf", "38,0"), leaf("Heissgas", "70")),
		section("Eingänge", leaf("ASD", "Aus"), leaf("HD", "14 bar")),
		section("Energiemonitor",
			section("Wärmemenge", leaf("Heizung", "1000"), leaf("Warmwasser", "200"), leaf("Gesamt", "1200")),
			section("Leistungsaufnahme", leaf("Heizung", "300")),
		),
		section("Fehlerspeicher", leaf("Fehler 1", "x")),
	}
}

func TestSnapshotFiltersAndFlattens(t *testing.T) {
	known := domain.ImportValues{
		"Temperaturen": {Exclude: []string{"Heissgas"}},
		"Eingänge":     {},
		"Energiemonitor": {Nested: map[string]*domain.FilterRule{
			"Wärmemenge": {Include: []string{"Heizung", "Gesamt"}},
		}},
	}
	p := NewIngestPipeline(known, &recordingSink{}, &mockObs{})

	snap := p.Snapshot(informationen())

	got := map[string]map[string]string{
		"Temperaturen": snap["Temperaturen"].Fields.Map(),
		"Eingänge":     snap["Eingänge"].Fields.Map(),
		"Wärmemenge":   snap["Energiemonitor"].Subcategories["Wärmemenge"].Map(),
		"Leistung":     snap["Energiemonitor"].Subcategories["Leistungsaufnahme"].Map(),
	}
	want := map[string]map[string]string{
		"Temperaturen": {"Vorlauf": "45.3", "Rücklauf": "38,0"},
		"Eingänge":     {"ASD": "Aus", "HD": "14 bar"},
		"Wärmemenge":   {"Heizung": "1000", "Gesamt": "1200"},
		"Leistung":     {"Heizung": "300"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
	if _, ok := snap["Fehlerspeicher"]; ok {
		t.Fatal("unconfigured category must not be flattened")
	}
}

func TestIngestSavesAndCounts(t *testing.T) {
	sink := &recordingSink{result: domain.SaveResult{Snapshots: 1, Categories: 1}}
	obs := &mockObs{}
	clock := time.Unix(1_700_000_000, 0)
	p := NewIngestPipeline(domain.ImportValues{"Temperaturen": nil}, sink, obs,
		WithClock(func() time.Time { return clock }))

	res := p.Ingest(context.Background(), informationen())
	if res != (domain.SaveResult{Snapshots: 1, Categories: 1}) {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(sink.saved) != 1 {
		t.Fatalf("expected one save, got %d", len(sink.saved))
	}
	if obs.counters[ports.MetricSnapshotsSaved] != 1 || obs.counters[ports.MetricCategoriesSaved] != 1 {
		t.Fatalf("unexpected counters %+v", obs.counters)
	}
	if obs.gauges[ports.MetricLastSnapshot] != float64(clock.Unix()) {
		t.Fatalf("unexpected last snapshot gauge %v", obs.gauges[ports.MetricLastSnapshot])
	}

	p.Ingest(context.Background(), informationen())
	if got := p.Totals(); got != (domain.SaveResult{Snapshots: 2, Categories: 2}) {
		t.Fatalf("unexpected totals %+v", got)
	}
	if obs.infos["snapshot_saved"] != 1 {
		t.Fatalf("expected throttled progress log once, got %d", obs.infos["snapshot_saved"])
	}

	clock = clock.Add(DefaultLogEvery)
	p.Ingest(context.Background(), informationen())
	if obs.infos["snapshot_saved"] != 2 {
		t.Fatalf("expected progress log after interval, got %d", obs.infos["snapshot_saved"])
	}
}

func TestIngestFailureYieldsZero(t *testing.T) {
	sink := &recordingSink{err: errors.New("database is locked")}
	obs := &mockObs{}
	p := NewIngestPipeline(domain.ImportValues{"Temperaturen": nil}, sink, obs)

	res := p.Ingest(context.Background(), informationen())
	if res != (domain.SaveResult{}) {
		t.Fatalf("expected zero result, got %+v", res)
	}
	if len(obs.errors) != 1 {
		t.Fatalf("expected one logged error, got %d", len(obs.errors))
	}
	if obs.counters[ports.MetricSaveFailures] != 1 {
		t.Fatalf("expected failure counter 1, got %v", obs.counters[ports.MetricSaveFailures])
	}

	sink.err = nil
	sink.result = domain.SaveResult{Snapshots: 1, Categories: 1}
	if res := p.Ingest(context.Background(), informationen()); res.Snapshots != 1 {
		t.Fatalf("next ingest should proceed normally, got %+v", res)
	}
}

func TestIngestKeepsCommittedResultOnSecondaryFailure(t *testing.T) {
	sink := &recordingSink{
		result: domain.SaveResult{Snapshots: 1, Categories: 1},
		err:    &ports.SecondarySinkError{Err: errors.New("mqtt: offline")},
	}
	obs := &mockObs{}
	p := NewIngestPipeline(domain.ImportValues{"Temperaturen": nil}, sink, obs)

	res := p.Ingest(context.Background(), informationen())
	if res != (domain.SaveResult{Snapshots: 1, Categories: 1}) {
		t.Fatalf("committed result must be kept, got %+v", res)
	}
	if got := p.Totals(); got != res {
		t.Fatalf("unexpected totals %+v", got)
	}
	if obs.counters[ports.MetricSaveFailures] != 0 {
		t.Fatalf("save failure counted for a committed snapshot: %v", obs.counters[ports.MetricSaveFailures])
	}
	if obs.counters[ports.MetricSecondaryFailure] != 1 || len(obs.errors) != 1 {
		t.Fatalf("expected one secondary failure, got %v / %d", obs.counters[ports.MetricSecondaryFailure], len(obs.errors))
	}
	if obs.counters[ports.MetricSnapshotsSaved] != 1 {
		t.Fatalf("unexpected counters %+v", obs.counters)
	}
}

func TestTotalsConcurrentWithIngest(t *testing.T) {
	sink := &recordingSink{result: domain.SaveResult{Snapshots: 1, Categories: 1}}
	p := NewIngestPipeline(domain.ImportValues{"Temperaturen": nil}, sink, &mockObs{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			p.Ingest(context.Background(), informationen())
		}
	}()
	for i := 0; i < 100; i++ {
		_ = p.Totals()
	}
	<-done

	if got := p.Totals(); got != (domain.SaveResult{Snapshots: 100, Categories: 100}) {
		t.Fatalf("unexpected totals %+v", got)
	}
}

func TestIngestSkipsEmptySnapshot(t *testing.T) {
	sink := &recordingSink{}
	p := NewIngestPipeline(domain.ImportValues{"Wetter": nil}, sink, &mockObs{})

	if res := p.Ingest(context.Background(), informationen()); res != (domain.SaveResult{}) {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(sink.saved) != 0 {
		t.Fatal("sink must not be called for an empty snapshot")
	}
}

type recordingSink struct {
	saved  []domain.Snapshot
	result domain.SaveResult
	err    error
}

func (s *recordingSink) SaveSnapshot(_ context.Context, snap domain.Snapshot) (domain.SaveResult, error) {
	if ports.IsSecondarySinkError(s.err) {
		s.saved = append(s.saved, snap)
		return s.result, s.err
	}
	if s.err != nil {
		return domain.SaveResult{}, s.err
	}
	s.saved = append(s.saved, snap)
	return s.result, nil
}

func (s *recordingSink) Name() string { return "recording" }

type mockObs struct {
	errors   []error
	infos    map[string]int
	counters map[string]float64
	gauges   map[string]float64
}

func (m *mockObs) LogInfo(msg string, _ ...ports.Field) {
	if m.infos == nil {
		m.infos = make(map[string]int)
	}
	m.infos[msg]++
}
func (m *mockObs) LogError(_ string, err error, _ ...ports.Field) { m.errors = append(m.errors, err) }
func (m *mockObs) LogCritical(string, error, ...ports.Field)      {}
func (m *mockObs) IncCounter(name string, v float64) {
	if m.counters == nil {
		m.counters = make(map[string]float64)
	}
	m.counters[name] += v
}
func (m *mockObs) ObserveLatency(string, float64) {}
func (m *mockObs) SetGauge(name string, v float64) {
	if m.gauges == nil {
		m.gauges = make(map[string]float64)
	}
	m.gauges[name] = v
}
