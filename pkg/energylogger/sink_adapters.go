package energylogger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrChannelSinkClosed is returned when a channel sink is written to after being closed.
var ErrChannelSinkClosed = errors.New("energylogger: channel sink closed")

// SnapshotHandler receives every snapshot the pipeline produces.
type SnapshotHandler func(ctx context.Context, snap Snapshot) error

// NewCallbackSink adapts a SnapshotHandler into a Sink so callers can plug
// arbitrary functions without defining structs.
func NewCallbackSink(name string, fn SnapshotHandler) Sink {
	if name == "" {
		name = "callback"
	}
	return &callbackSink{name: name, fn: fn}
}

// NewChannelSink exposes snapshots via a channel; it returns the sink, the
// read-only channel, and a close function that the caller should invoke
// during shutdown.
func NewChannelSink(name string, buffer int) (Sink, <-chan Snapshot, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan Snapshot, buffer)
	s := &channelSink{
		name:   name,
		ch:     ch,
		closed: make(chan struct{}),
	}
	return s, ch, func() { s.close() }
}

// MultiSink saves every snapshot to each sink in order. The first sink is
// the primary: its result is reported, and if it fails the snapshot counts
// as not saved. Failures of the others leave the result intact and come
// back wrapped in a *SecondarySinkError.
func MultiSink(primary Sink, others ...Sink) Sink {
	return &multiSink{sinks: append([]Sink{primary}, others...)}
}

type callbackSink struct {
	name string
	fn   SnapshotHandler
}

func (s *callbackSink) SaveSnapshot(ctx context.Context, snap Snapshot) (SaveResult, error) {
	if s.fn == nil {
		return SaveResult{}, fmt.Errorf("callback sink %q: nil handler", s.name)
	}
	if len(snap) == 0 {
		return SaveResult{}, nil
	}
	if err := s.fn(ctx, snap); err != nil {
		return SaveResult{}, err
	}
	return SaveResult{Snapshots: 1, Categories: countCategories(snap)}, nil
}

func (s *callbackSink) Name() string { return s.name }

type channelSink struct {
	name   string
	ch     chan Snapshot
	closed chan struct{}
	once   sync.Once
	mu     sync.RWMutex
}

func (s *channelSink) SaveSnapshot(ctx context.Context, snap Snapshot) (SaveResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	select {
	case <-s.closed:
		return SaveResult{}, ErrChannelSinkClosed
	default:
	}

	if len(snap) == 0 {
		return SaveResult{}, nil
	}

	select {
	case <-s.closed:
		return SaveResult{}, ErrChannelSinkClosed
	case <-ctx.Done():
		return SaveResult{}, ctx.Err()
	case s.ch <- snap:
		return SaveResult{Snapshots: 1, Categories: countCategories(snap)}, nil
	}
}

func (s *channelSink) Name() string { return s.name }

// close unblocks pending sends before closing the channel.
func (s *channelSink) close() {
	s.once.Do(func() {
		close(s.closed)
		s.mu.Lock()
		close(s.ch)
		s.mu.Unlock()
	})
}

type multiSink struct {
	sinks []Sink
}

func (m *multiSink) SaveSnapshot(ctx context.Context, snap Snapshot) (SaveResult, error) {
	primary := m.sinks[0]
	res, err := primary.SaveSnapshot(ctx, snap)
	if err != nil {
		errs := []error{fmt.Errorf("%s: %w", primary.Name(), err)}
		for _, s := range m.sinks[1:] {
			if _, err := s.SaveSnapshot(ctx, snap); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			}
		}
		return SaveResult{}, errors.Join(errs...)
	}

	var errs []error
	for _, s := range m.sinks[1:] {
		if _, err := s.SaveSnapshot(ctx, snap); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	if len(errs) > 0 {
		return res, &SecondarySinkError{Err: errors.Join(errs...)}
	}
	return res, nil
}

func (m *multiSink) Name() string {
	names := make([]string, len(m.sinks))
	for i, s := range m.sinks {
		names[i] = s.Name()
	}
	return "multi(" + strings.Join(names, ",") + ")"
}

// countCategories counts one per regular category and one per subcategory of
// a multi-subcategory category.
func countCategories(snap Snapshot) int {
	n := 0
	for _, r := range snap {
		if len(r.Subcategories) > 0 {
			n += len(r.Subcategories)
			continue
		}
		if r.Fields != nil {
			n++
		}
	}
	return n
}
