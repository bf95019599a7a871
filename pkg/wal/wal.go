package wal

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// FileName is the name of the log file inside the WAL directory.
const FileName = "wal.log"

// ErrClosed is returned by operations on a closed WAL.
var ErrClosed = errors.New("wal: closed")

// Options configure a WAL.
type Options struct {
	Logger     *slog.Logger
	Registerer prometheus.Registerer
}

// Visitor receives every fully-formed record during replay, in file order.
// It runs with the WAL lock held and must not call back into the WAL.
type Visitor func(key, value []byte, isDelete bool) error

// ReplayStats describes how a replay ended.
type ReplayStats struct {
	Records int
	// Offset is the number of bytes covered by the replayed records.
	Offset int64
	// Truncated is set when the log ended with a partial record.
	Truncated bool
}

// WAL is an append-only, fsync-per-record write-ahead log.
//
// Every append is encoded, written and synced under a single mutex, so
// appends form a total order and a returned nil error means the record is on
// stable storage.
type WAL struct {
	mu       sync.Mutex
	file     *os.File
	filePath string
	size     int64
	scratch  []byte

	logger  *slog.Logger
	metrics *walMetrics
}

// CorruptSuffix is appended to the log path, followed by the byte offset,
// to name the file that keeps a tail cut off by Repair.
const CorruptSuffix = ".corrupt-"

// Open creates dir if needed and opens its log file for appending.
func Open(dir string, optFns ...func(o *Options)) (*WAL, error) {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if dir == "" {
		return nil, fmt.Errorf("empty WAL dir")
	}
	dir = filepath.Clean(dir)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create WAL directory: %w", err)
	}

	filePath := filepath.Join(dir, FileName)
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAL file: %w", err)
	}

	st, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to stat WAL file: %w", err)
	}

	metrics, err := newWALMetrics(opts.Registerer)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to register WAL metrics: %w", err)
	}

	return &WAL{
		file:     file,
		filePath: filePath,
		size:     st.Size(),
		logger:   opts.Logger.With("component", "wal", "path", filePath),
		metrics:  metrics,
	}, nil
}

// AppendPut durably logs a put of key to value.
func (w *WAL) AppendPut(key, value []byte) error {
	return w.append(Record{Kind: KindPut, Key: key, Value: value})
}

// AppendDelete durably logs a delete of key.
func (w *WAL) AppendDelete(key []byte) error {
	return w.append(Record{Kind: KindDelete, Key: key})
}

func (w *WAL) append(rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return ErrClosed
	}

	if err := w.writeRecord(rec); err != nil {
		w.metrics.appendFailures.Inc()
		w.logger.Error("WAL append failed", "kind", rec.Kind.String(), "error", err)
		return err
	}

	w.metrics.appends.WithLabelValues(rec.Kind.String()).Inc()
	return nil
}

// writeRecord must be called with w.mu held.
func (w *WAL) writeRecord(rec Record) error {
	buf, err := AppendRecord(w.scratch[:0], rec)
	if err != nil {
		return fmt.Errorf("failed to encode WAL record: %w", err)
	}
	w.scratch = buf

	if _, err := w.file.Write(buf); err != nil {
		w.rollback()
		return fmt.Errorf("failed to write WAL record: %w", err)
	}

	start := time.Now()
	if err := w.file.Sync(); err != nil {
		w.rollback()
		return fmt.Errorf("failed to sync WAL: %w", err)
	}
	w.metrics.fsyncDuration.Observe(time.Since(start).Seconds())

	w.size += int64(len(buf))
	return nil
}

// rollback cuts a partially written record off the end of the log so
// later appends do not land behind garbage. Recovery tolerates a partial
// tail anyway, so a failed rollback is only logged.
func (w *WAL) rollback() {
	if err := w.file.Truncate(w.size); err != nil {
		w.logger.Warn("failed to roll back partial WAL record", "size", w.size, "error", err)
	}
}

// Replay decodes the log from the beginning and calls visit for every
// fully-formed record in file order.
//
// A clean end of file or a partial trailing record ends the replay without
// an error. An unknown kind byte stops it with a *FormatError; the records
// delivered before that point are counted in the returned stats. A missing
// log file replays as empty. Replay never changes the file; Repair does.
func (w *WAL) Replay(visit Visitor) (ReplayStats, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return ReplayStats{}, ErrClosed
	}

	file, err := os.Open(w.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return ReplayStats{}, nil
		}
		return ReplayStats{}, fmt.Errorf("failed to open WAL for reading: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			w.logger.Warn("failed to close WAL read file", "error", cerr)
		}
	}()

	stats, err := replay(NewReader(file), visit)
	w.metrics.replayed.Add(float64(stats.Records))
	if stats.Truncated {
		w.logger.Info("WAL ends with a partial record, ignoring tail", "offset", stats.Offset)
	}

	return stats, err
}

func replay(r *Reader, visit Visitor) (ReplayStats, error) {
	var stats ReplayStats

	for {
		rec, err := r.Next()
		switch {
		case errors.Is(err, io.EOF):
			return stats, nil
		case errors.Is(err, ErrTruncated):
			stats.Truncated = true
			return stats, nil
		case err != nil:
			return stats, err
		}

		if err := visit(rec.Key, rec.Value, rec.Kind == KindDelete); err != nil {
			return stats, fmt.Errorf("WAL replay callback failed: %w", err)
		}
		stats.Records++
		stats.Offset = r.Offset()
	}
}

// Repair cuts the log back to offset, the end of the last record a replay
// could read, so new appends are not written behind bytes that no replay
// can get past. With keepTail set the removed bytes are first saved to
// the log path plus CorruptSuffix and the offset. Repair is a no-op when the
// log is already offset bytes long.
func (w *WAL) Repair(offset int64, keepTail bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return ErrClosed
	}

	st, err := w.file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat WAL: %w", err)
	}
	if offset < 0 || offset > st.Size() {
		return fmt.Errorf("repair offset %d outside WAL of %d bytes", offset, st.Size())
	}
	if offset == st.Size() {
		return nil
	}

	if keepTail {
		if err := w.saveTail(offset); err != nil {
			return err
		}
	}

	if err := w.file.Truncate(offset); err != nil {
		return fmt.Errorf("failed to truncate WAL tail: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync WAL: %w", err)
	}

	w.logger.Warn("WAL tail cut off", "offset", offset, "dropped", st.Size()-offset, "saved", keepTail)
	w.size = offset

	return nil
}

// saveTail must be called with w.mu held.
func (w *WAL) saveTail(offset int64) error {
	src, err := os.Open(w.filePath)
	if err != nil {
		return fmt.Errorf("failed to open WAL for reading: %w", err)
	}
	defer src.Close()

	if _, err := src.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek WAL tail: %w", err)
	}

	dstPath := fmt.Sprintf("%s%s%d", w.filePath, CorruptSuffix, offset)
	dst, err := os.OpenFile(dstPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dstPath, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return fmt.Errorf("failed to save WAL tail: %w", err)
	}
	if err := dst.Sync(); err != nil {
		_ = dst.Close()
		return fmt.Errorf("failed to sync %s: %w", dstPath, err)
	}
	return dst.Close()
}

// Clear discards all log content and leaves the WAL ready for appends.
// It must only be called once the records have been persisted elsewhere.
func (w *WAL) Clear() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return ErrClosed
	}

	if err := w.file.Truncate(0); err != nil {
		return fmt.Errorf("failed to truncate WAL: %w", err)
	}
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind WAL: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync WAL: %w", err)
	}

	w.size = 0
	w.metrics.clears.Inc()
	w.logger.Debug("WAL cleared")

	return nil
}

// Size returns the current log size in bytes.
func (w *WAL) Size() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

func (w *WAL) Path() string {
	return w.filePath
}

func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}

	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync WAL on close: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close WAL file: %w", err)
	}
	w.file = nil
	w.metrics.unregister()

	return nil
}
