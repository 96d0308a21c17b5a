package energylogger

import (
	"context"
	"errors"
	"fmt"

	"github.com/Cetendo/EnergyLogger/internal/adapters/markup"
	"github.com/Cetendo/EnergyLogger/internal/adapters/observability"
	"github.com/Cetendo/EnergyLogger/internal/app/pipeline"
	"github.com/Cetendo/EnergyLogger/internal/ports"
)

// ErrNoContent is returned when a published document carries no content tree.
var ErrNoContent = errors.New("energylogger: document has no content")

// ExternalPublisher feeds content documents obtained elsewhere (captures,
// other transports, fixtures) through the same filter and flattener as a
// live session.
type ExternalPublisher struct {
	pipeline *pipeline.IngestPipeline
	sink     Sink
	obs      Observability
}

// NewExternalPublisher selects categories with known and saves to sink.
func NewExternalPublisher(known ImportValues, sink Sink, obs Observability) (*ExternalPublisher, error) {
	if sink == nil {
		return nil, fmt.Errorf("sink is required")
	}
	if len(known) == 0 {
		return nil, fmt.Errorf("at least one category is required")
	}
	if obs == nil {
		obs = observability.Nop{}
	}
	return &ExternalPublisher{
		pipeline: pipeline.NewIngestPipeline(known, sink, obs),
		sink:     sink,
		obs:      obs,
	}, nil
}

// Publish decodes one document and saves its snapshot. Unlike a live
// session, save errors are returned to the caller.
func (p *ExternalPublisher) Publish(ctx context.Context, payload []byte) (SaveResult, error) {
	msg, err := markup.Decode(payload)
	if err != nil {
		return SaveResult{}, err
	}
	if !msg.HasContent() {
		return SaveResult{}, ErrNoContent
	}
	return p.PublishSnapshot(ctx, p.pipeline.Snapshot(msg.Content))
}

// PublishSnapshot saves an already flattened snapshot. When only a secondary
// sink failed the committed result is returned together with the error.
func (p *ExternalPublisher) PublishSnapshot(ctx context.Context, snap Snapshot) (SaveResult, error) {
	res, err := p.sink.SaveSnapshot(ctx, snap)
	var secondary error
	if ports.IsSecondarySinkError(err) {
		p.obs.IncCounter(ports.MetricSecondaryFailure, 1)
		secondary, err = err, nil
	}
	if err != nil {
		p.obs.IncCounter(ports.MetricSaveFailures, 1)
		return SaveResult{}, fmt.Errorf("%s: %w", p.sink.Name(), err)
	}
	p.obs.IncCounter(ports.MetricSnapshotsSaved, float64(res.Snapshots))
	p.obs.IncCounter(ports.MetricCategoriesSaved, float64(res.Categories))
	p.obs.LogInfo("external_snapshot_saved",
		ports.F("sink", p.sink.Name()),
		ports.F("categories", res.Categories))
	return res, secondary
}
