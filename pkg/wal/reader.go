package wal

import (
	"bufio"
	"errors"
	"io"
)

// Reader decodes records sequentially from a log stream.
type Reader struct {
	r      *bufio.Reader
	offset int64
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next returns the next fully-formed record.
//
// io.EOF marks a clean end of the log and ErrTruncated a partial trailing
// record. Neither moves Offset.
func (r *Reader) Next() (Record, error) {
	rec, n, err := decode(r.r)
	if err != nil {
		var fe *FormatError
		if errors.As(err, &fe) {
			fe.Offset = r.offset
		}
		return Record{}, err
	}

	r.offset += n
	return rec, nil
}

// Offset returns the number of bytes consumed by the records returned so far.
func (r *Reader) Offset() int64 {
	return r.offset
}
