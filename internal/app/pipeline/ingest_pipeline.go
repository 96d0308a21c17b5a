package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/Cetendo/EnergyLogger/internal/app/tree"
	"github.com/Cetendo/EnergyLogger/internal/domain"
	"github.com/Cetendo/EnergyLogger/internal/ports"
)

// DefaultLogEvery throttles the snapshot_saved progress log.
const DefaultLogEvery = 30 * time.Second

// IngestPipeline turns decoded content into a persisted snapshot. Ingest is
// called from the session loop only; Totals may be read from anywhere.
type IngestPipeline struct {
	known    domain.ImportValues
	sink     ports.Sink
	obs      ports.Observability
	now      func() time.Time
	logEvery time.Duration

	lastLog time.Time

	mu     sync.Mutex
	totals domain.SaveResult
}

// Option customizes an IngestPipeline.
type Option func(*IngestPipeline)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *IngestPipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// WithLogEvery changes how often progress is logged. Zero logs every save.
func WithLogEvery(d time.Duration) Option {
	return func(p *IngestPipeline) {
		if d >= 0 {
			p.logEvery = d
		}
	}
}

func NewIngestPipeline(known domain.ImportValues, sink ports.Sink, obs ports.Observability, opts ...Option) *IngestPipeline {
	p := &IngestPipeline{
		known:    known,
		sink:     sink,
		obs:      obs,
		now:      time.Now,
		logEvery: DefaultLogEvery,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest filters, flattens and saves one content message. Persistence
// failures are logged and reported as a zero result. A secondary sink
// failure is logged but the committed result is kept.
func (p *IngestPipeline) Ingest(ctx context.Context, content []domain.Node) domain.SaveResult {
	snap := p.Snapshot(content)
	if len(snap) == 0 {
		return domain.SaveResult{}
	}

	start := p.now()
	res, err := p.sink.SaveSnapshot(ctx, snap)
	if err != nil && ports.IsSecondarySinkError(err) {
		p.obs.IncCounter(ports.MetricSecondaryFailure, 1)
		p.obs.LogError("secondary_sink_failed", err, ports.F("sink", p.sink.Name()))
		err = nil
	}
	if err != nil {
		p.obs.IncCounter(ports.MetricSaveFailures, 1)
		p.obs.LogError("snapshot_save_failed", err,
			ports.F("sink", p.sink.Name()),
			ports.F("categories", len(snap)))
		return domain.SaveResult{}
	}

	p.obs.ObserveLatency(ports.MetricSaveLatency, p.now().Sub(start).Seconds())
	p.obs.IncCounter(ports.MetricSnapshotsSaved, float64(res.Snapshots))
	p.obs.IncCounter(ports.MetricCategoriesSaved, float64(res.Categories))
	if res.Snapshots > 0 {
		p.obs.SetGauge(ports.MetricLastSnapshot, float64(start.Unix()))
	}

	p.mu.Lock()
	p.totals.Snapshots += res.Snapshots
	p.totals.Categories += res.Categories
	totals := p.totals
	p.mu.Unlock()

	if now := p.now(); p.lastLog.IsZero() || now.Sub(p.lastLog) >= p.logEvery {
		p.lastLog = now
		p.obs.LogInfo("snapshot_saved",
			ports.F("categories", res.Categories),
			ports.F("total_snapshots", totals.Snapshots),
			ports.F("total_categories", totals.Categories))
	}
	return res
}

// Snapshot runs the filter and flattener without saving.
func (p *IngestPipeline) Snapshot(content []domain.Node) domain.Snapshot {
	top := tree.FilterTopLevel(content, p.known)

	pruned := make([]domain.Node, 0, len(top))
	for _, n := range top {
		sec, ok := n.(domain.Section)
		if !ok {
			continue
		}
		sec.Children = tree.Prune(sec.Children, p.known[sec.Name])
		pruned = append(pruned, sec)
	}

	var f tree.Flattener
	snap := f.FlattenCategories(pruned)
	if f.Truncated {
		p.obs.LogInfo("content_truncated", ports.F("max_depth", tree.MaxDepth))
	}
	return snap
}

// Totals reports everything saved since the pipeline was created.
func (p *IngestPipeline) Totals() domain.SaveResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totals
}
