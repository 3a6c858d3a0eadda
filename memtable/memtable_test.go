package memtable

import (
	"fmt"
	"sync"
	"testing"

	"github.com/flashdb/lsmgo/bound"
)

func TestEmptyMemTable(t *testing.T) {
	mt := New(1)
	if _, ok := mt.Get([]byte("missing")); ok {
		t.Fatal("expected not found in empty memtable")
	}
	if mt.NumEntries() != 0 {
		t.Fatalf("expected 0 entries, got %d", mt.NumEntries())
	}
}

func TestPutAndGet(t *testing.T) {
	mt := New(1)
	if err := mt.Put([]byte("a"), []byte("1")); err != nil {
		t.Fatal(err)
	}
	if err := mt.Put([]byte("b"), []byte("2")); err != nil {
		t.Fatal(err)
	}

	if v, ok := mt.Get([]byte("a")); !ok || string(v) != "1" {
		t.Fatalf("got (%s,%v)", v, ok)
	}
	if v, ok := mt.Get([]byte("b")); !ok || string(v) != "2" {
		t.Fatalf("got (%s,%v)", v, ok)
	}
	if _, ok := mt.Get([]byte("c")); ok {
		t.Fatal("expected c to be absent")
	}
}

func TestPutOverwritesAndTracksSize(t *testing.T) {
	mt := New(1)
	mt.Put([]byte("k"), []byte("one"))
	sizeAfterFirst := mt.ApproximateSize()

	mt.Put([]byte("k"), []byte("updated"))
	if mt.NumEntries() != 1 {
		t.Fatalf("expected 1 entry after overwrite, got %d", mt.NumEntries())
	}
	if mt.ApproximateSize() <= sizeAfterFirst {
		t.Fatal("expected approximate size to never decrease and to grow on overwrite")
	}

	v, ok := mt.Get([]byte("k"))
	if !ok || string(v) != "updated" {
		t.Fatalf("got (%s,%v)", v, ok)
	}
}

func TestTombstoneIsEmptyNotAbsent(t *testing.T) {
	mt := New(1)
	mt.Put([]byte("k"), []byte("v1"))
	mt.Put([]byte("k"), nil)

	v, ok := mt.Get([]byte("k"))
	if !ok {
		t.Fatal("expected tombstone to still report found=true")
	}
	if len(v) != 0 {
		t.Fatalf("expected empty value for tombstone, got %q", v)
	}
}

func TestIteratorUnboundedWalksInOrder(t *testing.T) {
	mt := New(1)
	keys := []string{"d", "b", "a", "c", "e"}
	for _, k := range keys {
		mt.Put([]byte(k), []byte("v-"+k))
	}

	it := NewIterator(mt, bound.Unbounded, bound.Unbounded)
	var got []string
	for it.IsValid() {
		got = append(got, string(it.Key()))
		if err := it.Next(); err != nil {
			t.Fatal(err)
		}
	}

	want := []string{"a", "b", "c", "d", "e"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestIteratorRespectsIncludedExcludedBounds(t *testing.T) {
	mt := New(1)
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		mt.Put([]byte(k), []byte(k))
	}

	it := NewIterator(mt, bound.Included([]byte("b")), bound.Excluded([]byte("d")))
	var got []string
	for it.IsValid() {
		got = append(got, string(it.Key()))
		it.Next()
	}

	want := []string{"b", "c"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestConcurrentPutAndGet(t *testing.T) {
	mt := New(1)
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			mt.Put([]byte(fmt.Sprintf("k-%03d", i)), []byte(fmt.Sprintf("v-%03d", i)))
		}(i)
	}
	wg.Wait()

	if mt.NumEntries() != 100 {
		t.Fatalf("expected 100 entries, got %d", mt.NumEntries())
	}
	for i := 0; i < 100; i++ {
		v, ok := mt.Get([]byte(fmt.Sprintf("k-%03d", i)))
		if !ok || string(v) != fmt.Sprintf("v-%03d", i) {
			t.Fatalf("mismatch at %d: (%s,%v)", i, v, ok)
		}
	}
}
