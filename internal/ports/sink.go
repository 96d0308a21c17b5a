package ports

import (
	"context"
	"errors"

	"github.com/Cetendo/EnergyLogger/internal/domain"
)

// Sink persists snapshots. A failed save reports a zero result; nothing of
// the failed snapshot is visible afterwards.
type Sink interface {
	SaveSnapshot(ctx context.Context, snap domain.Snapshot) (domain.SaveResult, error)
	Name() string
}

// SecondarySinkError is returned alongside a committed result when the
// primary sink saved the snapshot but a sink fanned out after it did not.
// The result stands; callers should treat the error as a warning.
type SecondarySinkError struct {
	Err error
}

func (e *SecondarySinkError) Error() string { return "secondary sink: " + e.Err.Error() }

func (e *SecondarySinkError) Unwrap() error { return e.Err }

// IsSecondarySinkError reports whether err only carries secondary failures.
func IsSecondarySinkError(err error) bool {
	var se *SecondarySinkError
	return errors.As(err, &se)
}
