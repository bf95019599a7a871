package memtable

import (
	"bytes"
	"sync"
	"sync/atomic"

	"github.com/zhangyunhao116/skipmap"
)

type concurrentSet = skipmap.FuncMap[[]byte, Item]

// Memtable is an ordered in-memory table of values and tombstones.
//
// Reads go to the skipmap without locking. Mutations and Snapshot take mu,
// so the size accounting stays exact and a snapshot is point-in-time.
type Memtable struct {
	mu   sync.Mutex
	set  *concurrentSet
	size atomic.Int64
}

func New() *Memtable {
	return &Memtable{
		set: skipmap.NewFunc[[]byte, Item](func(a, b []byte) bool {
			return bytes.Compare(a, b) < 0
		}),
	}
}

// Put stores value under key, replacing a previous value or tombstone.
// An empty value is a real value.
func (mt *Memtable) Put(k, value []byte) {
	v := make([]byte, len(value))
	copy(v, value)
	mt.upsert(Item{Key: clone(k), Value: v})
}

// Delete stores a tombstone under key whether or not the key exists.
func (mt *Memtable) Delete(k []byte) {
	mt.upsert(Item{Key: clone(k), Tombstone: true})
}

func (mt *Memtable) upsert(it Item) {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	delta := it.size()
	if old, ok := mt.set.Load(it.Key); ok {
		delta -= old.size()
	}
	mt.set.Store(it.Key, it)
	mt.size.Add(delta)
}

// Get returns the state of key. A found value is a copy the caller may keep
// and modify.
func (mt *Memtable) Get(k []byte) Result {
	it, ok := mt.set.Load(k)
	switch {
	case !ok:
		return Result{State: NotFound}
	case it.Tombstone:
		return Result{State: Deleted}
	default:
		return Result{State: Found, Value: clone(it.Value)}
	}
}

// Snapshot returns every entry, tombstones included, in key order.
// The items share memory with the table and must not be modified.
func (mt *Memtable) Snapshot() []Item {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	result := make([]Item, 0, mt.set.Len())
	mt.set.Range(func(_ []byte, value Item) bool {
		result = append(result, value)
		return true
	})

	return result
}

// Len returns the number of keys, tombstones included.
func (mt *Memtable) Len() int {
	return mt.set.Len()
}

// Size returns the approximate number of bytes held by the table.
func (mt *Memtable) Size() int64 {
	return mt.size.Load()
}

func clone(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
