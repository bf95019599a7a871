package store

import (
	"fmt"

	"lsmcore/pkg/dberrors"
	"lsmcore/pkg/memtable"
)

// Sink durably persists a sorted memtable snapshot, e.g. as a sorted table file.
type Sink interface {
	Persist(items []memtable.Item) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(items []memtable.Item) error

func (f SinkFunc) Persist(items []memtable.Item) error {
	return f(items)
}

// Flush hands the memtable to sink, then clears the journal and starts a
// fresh memtable. Writes are blocked for the duration. If sink fails the
// journal and memtable are left as they were.
func (s *Store) Flush(sink Sink) error {
	if sink == nil {
		return fmt.Errorf("%w: nil sink", dberrors.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return dberrors.ErrClosed
	}

	snapshot := s.mt.Load().Snapshot()
	if len(snapshot) == 0 {
		return nil
	}

	if err := sink.Persist(snapshot); err != nil {
		return fmt.Errorf("failed to persist memtable: %w", err)
	}

	if err := s.jr.Clear(); err != nil {
		return fmt.Errorf("failed to clear WAL after flush: %w", err)
	}
	s.mt.Store(memtable.New())

	s.log.Info("memtable flushed", "entries", len(snapshot))

	return nil
}
