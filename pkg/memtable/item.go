package memtable

import "bytes"

// Item is the state of one key: a value or a tombstone.
type Item struct {
	Key       []byte
	Value     []byte
	Tombstone bool
}

func (it *Item) Less(than *Item) bool {
	return bytes.Compare(it.Key, than.Key) < 0
}

func (it *Item) size() int64 {
	const tombstoneFlagSize = 1
	return int64(len(it.Key)+len(it.Value)) + tombstoneFlagSize
}

// State is the outcome of a lookup.
type State uint8

const (
	// NotFound means the key was never written to this table.
	NotFound State = iota
	// Found means the key holds a value, possibly empty.
	Found
	// Deleted means the key holds a tombstone.
	Deleted
)

func (s State) String() string {
	switch s {
	case Found:
		return "found"
	case Deleted:
		return "deleted"
	default:
		return "not found"
	}
}

// Result is what Get returns. Value is only meaningful when State is Found.
type Result struct {
	State State
	Value []byte
}

func (r Result) Found() bool {
	return r.State == Found
}

func (r Result) Deleted() bool {
	return r.State == Deleted
}
