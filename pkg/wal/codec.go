package wal

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Kind identifies the mutation stored in a record.
type Kind uint8

const (
	KindPut    Kind = 0
	KindDelete Kind = 1
)

func (k Kind) String() string {
	switch k {
	case KindPut:
		return "put"
	case KindDelete:
		return "delete"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

const (
	kindSize = 1
	lenSize  = 4

	// fields up to this size are read with a single allocation,
	// larger ones grow with the data actually present in the stream
	smallFieldSize = 64 * 1024
)

var (
	// ErrTruncated is returned when the stream ends in the middle of a record.
	ErrTruncated = errors.New("wal: truncated record")
	// ErrUnknownKind is matched by every *FormatError.
	ErrUnknownKind = errors.New("wal: unknown record kind")
	// ErrTooLarge is returned when a key or value does not fit a 4-byte length prefix.
	ErrTooLarge = errors.New("wal: record field too large")
)

// FormatError reports an unrecognized kind byte.
type FormatError struct {
	Offset int64
	Kind   byte
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("wal: unknown record kind %d at offset %d", e.Kind, e.Offset)
}

func (e *FormatError) Unwrap() error {
	return ErrUnknownKind
}

// Record is a single logged mutation.
//
// Layout, little-endian:
//
//	[kind:1][key len:4][key][value len:4][value]
//
// A delete always carries a zero value length.
type Record struct {
	Kind  Kind
	Key   []byte
	Value []byte
}

// EncodedLen returns the number of bytes Encode produces for r.
func (r Record) EncodedLen() int {
	n := kindSize + lenSize + len(r.Key) + lenSize
	if r.Kind == KindPut {
		n += len(r.Value)
	}
	return n
}

// Encode returns the binary form of r.
func Encode(r Record) ([]byte, error) {
	return AppendRecord(make([]byte, 0, r.EncodedLen()), r)
}

// AppendRecord appends the binary form of r to dst.
func AppendRecord(dst []byte, r Record) ([]byte, error) {
	if r.Kind != KindPut && r.Kind != KindDelete {
		return dst, &FormatError{Offset: -1, Kind: byte(r.Kind)}
	}
	if uint64(len(r.Key)) > math.MaxUint32 {
		return dst, fmt.Errorf("%w: key of %d bytes", ErrTooLarge, len(r.Key))
	}

	value := r.Value
	if r.Kind == KindDelete {
		value = nil
	}
	if uint64(len(value)) > math.MaxUint32 {
		return dst, fmt.Errorf("%w: value of %d bytes", ErrTooLarge, len(value))
	}

	dst = append(dst, byte(r.Kind))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(r.Key)))
	dst = append(dst, r.Key...)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(value)))
	dst = append(dst, value...)

	return dst, nil
}

// Decode reads exactly one record from r.
//
// It returns io.EOF when the stream ends before the kind byte, ErrTruncated
// when it ends inside a record and a *FormatError for an unknown kind byte.
// The Offset of a returned FormatError is relative to the start of r; use
// Reader to get file offsets.
func Decode(r io.Reader) (Record, error) {
	rec, _, err := decode(r)
	return rec, err
}

func decode(r io.Reader) (Record, int64, error) {
	var (
		rec    Record
		header [kindSize + lenSize]byte
	)

	if _, err := io.ReadFull(r, header[:kindSize]); err != nil {
		if errors.Is(err, io.EOF) {
			return rec, 0, io.EOF
		}
		return rec, 0, err
	}

	rec.Kind = Kind(header[0])
	if rec.Kind != KindPut && rec.Kind != KindDelete {
		return rec, kindSize, &FormatError{Kind: header[0]}
	}

	if _, err := io.ReadFull(r, header[kindSize:]); err != nil {
		return rec, kindSize, truncated(err)
	}
	n := int64(len(header))

	keyLen := binary.LittleEndian.Uint32(header[kindSize:])
	key, err := readField(r, keyLen)
	if err != nil {
		return rec, n, err
	}
	rec.Key = key
	n += int64(keyLen)

	var lenBuf [lenSize]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return rec, n, truncated(err)
	}
	n += lenSize

	valueLen := binary.LittleEndian.Uint32(lenBuf[:])
	value, err := readField(r, valueLen)
	if err != nil {
		return rec, n, err
	}
	n += int64(valueLen)

	if rec.Kind == KindPut {
		rec.Value = value
	}

	return rec, n, nil
}

func readField(r io.Reader, n uint32) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}

	if n <= smallFieldSize {
		b := make([]byte, n)
		if _, err := io.ReadFull(r, b); err != nil {
			return nil, truncated(err)
		}
		return b, nil
	}

	// a corrupted length prefix must not turn into a huge allocation
	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, r, int64(n)); err != nil {
		return nil, truncated(err)
	}
	return buf.Bytes(), nil
}

func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrTruncated
	}
	return err
}
