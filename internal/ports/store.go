package ports

import (
	"context"
	"time"

	"github.com/Cetendo/EnergyLogger/internal/domain"
)

// Store is a Sink that can also be queried and trimmed.
type Store interface {
	Sink
	EnsureSchema(ctx context.Context) error
	PurgeOlderThan(ctx context.Context, horizon time.Duration) (int64, error)
	Latest(ctx context.Context, category string, limit int) (map[string][]domain.Row, error)
	Stats(ctx context.Context) ([]domain.TableStats, error)
	Close() error
}
