package memtable

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
)

func TestPutGet(t *testing.T) {
	mt := New()
	mt.Put([]byte("k"), []byte("v1"))
	mt.Put([]byte("k"), []byte("v2"))

	res := mt.Get([]byte("k"))
	if !res.Found() || string(res.Value) != "v2" {
		t.Fatalf("expected v2, got %+v", res)
	}
	if mt.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", mt.Len())
	}
}

func TestThreeWayGet(t *testing.T) {
	mt := New()
	mt.Put([]byte("empty"), []byte{})
	mt.Put([]byte("gone"), []byte("v"))
	mt.Delete([]byte("gone"))

	tests := []struct {
		key   string
		state State
	}{
		{"empty", Found},
		{"gone", Deleted},
		{"never", NotFound},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			res := mt.Get([]byte(tt.key))
			if res.State != tt.state {
				t.Fatalf("expected %s, got %s", tt.state, res.State)
			}
		})
	}

	if res := mt.Get([]byte("empty")); res.Value == nil || len(res.Value) != 0 {
		t.Fatalf("expected present empty value, got %#v", res.Value)
	}
}

func TestDeleteAbsentKeyCreatesTombstone(t *testing.T) {
	mt := New()
	mt.Delete([]byte("ghost"))
	mt.Delete([]byte("ghost"))

	if res := mt.Get([]byte("ghost")); !res.Deleted() {
		t.Fatalf("expected tombstone, got %s", res.State)
	}
	if mt.Len() != 1 {
		t.Fatalf("expected a single tombstone entry, got %d", mt.Len())
	}
}

func TestPutAfterDelete(t *testing.T) {
	mt := New()
	mt.Put([]byte("a"), []byte("1"))
	mt.Delete([]byte("a"))
	mt.Put([]byte("a"), []byte("3"))

	if res := mt.Get([]byte("a")); !res.Found() || string(res.Value) != "3" {
		t.Fatalf("expected 3, got %+v", res)
	}
}

func TestInputsAreCopied(t *testing.T) {
	mt := New()
	key := []byte("key")
	val := []byte("value")
	mt.Put(key, val)

	key[0] = 'X'
	val[0] = 'X'

	res := mt.Get([]byte("key"))
	if !res.Found() || string(res.Value) != "value" {
		t.Fatalf("memtable aliases caller buffers: %+v", res)
	}
}

func TestSnapshotSortedWithTombstones(t *testing.T) {
	mt := New()
	mt.Put([]byte("c"), []byte("3"))
	mt.Put([]byte("a"), []byte("1"))
	mt.Delete([]byte("b"))
	mt.Put([]byte{0xff}, []byte("hi"))
	mt.Put([]byte{}, []byte("empty key"))

	snap := mt.Snapshot()
	wantKeys := [][]byte{{}, []byte("a"), []byte("b"), []byte("c"), {0xff}}
	if len(snap) != len(wantKeys) {
		t.Fatalf("expected %d items, got %d", len(wantKeys), len(snap))
	}
	for i, k := range wantKeys {
		if !bytes.Equal(snap[i].Key, k) {
			t.Fatalf("item #%d: expected key %q, got %q", i, k, snap[i].Key)
		}
	}
	if !snap[2].Tombstone {
		t.Fatal("expected b to be a tombstone in the snapshot")
	}

	// the snapshot does not clear the table
	if mt.Len() != len(wantKeys) {
		t.Fatalf("snapshot changed the table: %d entries", mt.Len())
	}
	for i := 1; i < len(snap); i++ {
		if !snap[i-1].Less(&snap[i]) {
			t.Fatalf("snapshot out of order at %d", i)
		}
	}
}

func TestSnapshotIsPointInTime(t *testing.T) {
	mt := New()
	mt.Put([]byte("a"), []byte("1"))

	snap := mt.Snapshot()
	mt.Put([]byte("a"), []byte("2"))
	mt.Put([]byte("b"), []byte("3"))

	if len(snap) != 1 || string(snap[0].Value) != "1" {
		t.Fatalf("snapshot changed after later writes: %+v", snap)
	}
}

func TestSizeAccounting(t *testing.T) {
	mt := New()
	mt.Put([]byte("key"), []byte("12345"))
	first := mt.Size()
	if first <= 0 {
		t.Fatalf("expected positive size, got %d", first)
	}

	mt.Put([]byte("key"), []byte("1"))
	if mt.Size() != first-4 {
		t.Fatalf("expected size %d after overwrite, got %d", first-4, mt.Size())
	}

	mt.Delete([]byte("key"))
	if mt.Size() != first-5 {
		t.Fatalf("expected size %d after delete, got %d", first-5, mt.Size())
	}
}

func TestConcurrentPutAndSnapshot(t *testing.T) {
	mt := New()

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				mt.Put([]byte(fmt.Sprintf("%d-%03d", g, i)), []byte("v"))
			}
		}(g)
	}

	for i := 0; i < 20; i++ {
		snap := mt.Snapshot()
		for j := 1; j < len(snap); j++ {
			if bytes.Compare(snap[j-1].Key, snap[j].Key) >= 0 {
				t.Fatalf("snapshot out of order")
			}
		}
	}
	wg.Wait()

	if mt.Len() != 800 {
		t.Fatalf("expected 800 entries, got %d", mt.Len())
	}
}

func TestGetReturnsCopy(t *testing.T) {
	mt := New()
	mt.Put([]byte("k"), []byte("value"))

	res := mt.Get([]byte("k"))
	res.Value[0] = 'X'

	if again := mt.Get([]byte("k")); string(again.Value) != "value" {
		t.Fatalf("Get exposed table memory: %q", again.Value)
	}
}

func TestConcurrentOverwriteSize(t *testing.T) {
	mt := New()
	key := []byte("hot")

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				if i%7 == 0 {
					mt.Delete(key)
					continue
				}
				mt.Put(key, bytes.Repeat([]byte("v"), g+i%13))
			}
		}(g)
	}
	wg.Wait()

	snap := mt.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected a single entry, got %d", len(snap))
	}
	want := int64(len(snap[0].Key) + len(snap[0].Value) + 1)
	if mt.Size() != want {
		t.Fatalf("size drifted: expected %d, got %d", want, mt.Size())
	}
}
