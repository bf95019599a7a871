package store

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"lsmcore/pkg/config"
	"lsmcore/pkg/dberrors"
	"lsmcore/pkg/memtable"
	"lsmcore/pkg/wal"

	"github.com/prometheus/client_golang/prometheus"
)

type iJournal interface {
	AppendPut(key, value []byte) error
	AppendDelete(key []byte) error
	Replay(visit wal.Visitor) (wal.ReplayStats, error)
	Repair(offset int64, keepTail bool) error
	Clear() error
	Close() error
}

type Options struct {
	Logger     *slog.Logger
	Registerer prometheus.Registerer
	// FlushThresholdBytes is the memtable size at which ShouldFlush reports true.
	FlushThresholdBytes int64
}

// Recovery summarizes the journal replay performed when the store was opened.
type Recovery struct {
	Applied int
	// Truncated is set when the journal ended with a partial record.
	Truncated bool
	// Warning holds the *wal.FormatError that stopped replay early, if any.
	Warning error
}

// Store is the write path of the database: every mutation is made durable
// in the journal before it becomes visible in the memtable.
type Store struct {
	jr  iJournal
	mt  atomic.Pointer[memtable.Memtable]
	log *slog.Logger

	// mu keeps journal order and memtable order identical
	mu     sync.Mutex
	closed atomic.Bool

	recovery       Recovery
	flushThreshold int64

	unregisterMetrics func()
}

// Open opens the journal in cfg.WAL.Dir and recovers the memtable from it.
func Open(cfg config.DB, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{FlushThresholdBytes: cfg.Memtable.FlushThresholdBytes}
	for _, fn := range optFns {
		fn(&opts)
	}

	journal, err := wal.Open(cfg.WAL.Dir, func(o *wal.Options) {
		o.Logger = opts.Logger
		o.Registerer = opts.Registerer
	})
	if err != nil {
		return nil, err
	}

	s, err := New(journal, func(o *Options) { *o = opts })
	if err != nil {
		if cerr := journal.Close(); cerr != nil {
			slog.Warn("failed to close WAL after failed open", "error", cerr)
		}
		return nil, err
	}

	return s, nil
}

// New builds a store over an already opened journal and replays it.
func New(jr iJournal, optFns ...func(o *Options)) (*Store, error) {
	if jr == nil {
		return nil, ErrWALNotInitialized
	}

	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Store{
		jr:             jr,
		log:            opts.Logger.With("component", "store"),
		flushThreshold: opts.FlushThresholdBytes,
	}
	s.mt.Store(memtable.New())

	if err := s.restoreFromJournal(); err != nil {
		return nil, err
	}

	unregister, err := registerMetrics(opts.Registerer, s)
	if err != nil {
		return nil, fmt.Errorf("failed to register store metrics: %w", err)
	}
	s.unregisterMetrics = unregister

	return s, nil
}

// restoreFromJournal replays the journal into the memtable and then cuts off
// whatever replay could not read, so records appended from now on stay
// reachable by the next replay. A partial tail is dropped; the bytes from a
// malformed record onwards are kept aside by the journal. A failed repair
// refuses startup.
func (s *Store) restoreFromJournal() error {
	mt := s.mt.Load()

	stats, err := s.jr.Replay(func(key, value []byte, isDelete bool) error {
		if isDelete {
			mt.Delete(key)
		} else {
			mt.Put(key, value)
		}
		return nil
	})

	s.recovery = Recovery{Applied: stats.Records, Truncated: stats.Truncated}

	var fe *wal.FormatError
	switch {
	case errors.As(err, &fe):
		s.recovery.Warning = err
		s.log.Warn("journal replay stopped at malformed record, keeping recovered prefix",
			"applied", stats.Records, "offset", fe.Offset, "error", err)
		if err := s.jr.Repair(fe.Offset, true); err != nil {
			return fmt.Errorf("failed to set aside malformed journal tail: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to restore from journal: %w", err)
	case stats.Truncated:
		s.log.Info("journal replayed", "applied", stats.Records, "truncated", true)
		if err := s.jr.Repair(stats.Offset, false); err != nil {
			return fmt.Errorf("failed to drop partial journal record: %w", err)
		}
	default:
		s.log.Info("journal replayed", "applied", stats.Records, "truncated", false)
	}

	return nil
}

func (s *Store) Put(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return dberrors.ErrClosed
	}

	if err := s.jr.AppendPut(key, value); err != nil {
		return fmt.Errorf("failed to append put to WAL: %w", err)
	}
	s.mt.Load().Put(key, value)

	return nil
}

func (s *Store) Delete(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return dberrors.ErrClosed
	}

	if err := s.jr.AppendDelete(key); err != nil {
		return fmt.Errorf("failed to append delete to WAL: %w", err)
	}
	s.mt.Load().Delete(key)

	return nil
}

// Get returns the value of key. A deleted key and a never written key both
// report false.
func (s *Store) Get(key []byte) ([]byte, bool, error) {
	res, err := s.Lookup(key)
	if err != nil || !res.Found() {
		return nil, false, err
	}
	return res.Value, true, nil
}

// Lookup returns the three-way memtable state of key.
func (s *Store) Lookup(key []byte) (memtable.Result, error) {
	if s.closed.Load() {
		return memtable.Result{}, dberrors.ErrClosed
	}
	return s.mt.Load().Get(key), nil
}

func (s *Store) PutString(key, value string) error {
	return s.Put([]byte(key), []byte(value))
}

func (s *Store) GetString(key string) (string, bool, error) {
	v, ok, err := s.Get([]byte(key))
	if err != nil || !ok {
		return "", ok, err
	}
	return string(v), true, nil
}

func (s *Store) DeleteString(key string) error {
	return s.Delete([]byte(key))
}

// Snapshot returns the sorted memtable content, tombstones included.
func (s *Store) Snapshot() []memtable.Item {
	return s.mt.Load().Snapshot()
}

// Recovery reports what was replayed when the store was opened.
func (s *Store) Recovery() Recovery {
	return s.recovery
}

// ShouldFlush reports whether the memtable has grown past the flush threshold.
func (s *Store) ShouldFlush() bool {
	return s.flushThreshold > 0 && s.mt.Load().Size() >= s.flushThreshold
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Swap(true) {
		return nil
	}
	s.unregisterMetrics()
	return s.jr.Close()
}
