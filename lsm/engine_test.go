package lsm

import (
	"fmt"
	"testing"

	"github.com/flashdb/lsmgo/bound"
)

func drainScan(t *testing.T, eng *Engine, lower, upper bound.Bound) []string {
	t.Helper()
	it, err := eng.Scan(lower, upper)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for it.IsValid() {
		got = append(got, string(it.Key())+"="+string(it.Value()))
		if err := it.Next(); err != nil {
			t.Fatal(err)
		}
	}
	return got
}

func TestPutGetRoundTrip(t *testing.T) {
	eng, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer eng.Close()

	if err := eng.Put([]byte("a"), []byte("1")); err != nil {
		t.Fatal(err)
	}
	if err := eng.Put([]byte("b"), []byte("2")); err != nil {
		t.Fatal(err)
	}

	if v, ok, err := eng.Get([]byte("a")); err != nil || !ok || string(v) != "1" {
		t.Fatalf("got (%s,%v,%v)", v, ok, err)
	}
	if v, ok, err := eng.Get([]byte("b")); err != nil || !ok || string(v) != "2" {
		t.Fatalf("got (%s,%v,%v)", v, ok, err)
	}
	if _, ok, err := eng.Get([]byte("c")); err != nil || ok {
		t.Fatalf("expected c absent, got ok=%v err=%v", ok, err)
	}
}

func TestTombstoneHidesPriorValue(t *testing.T) {
	eng, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer eng.Close()

	if err := eng.Put([]byte("k"), []byte("v1")); err != nil {
		t.Fatal(err)
	}
	if err := eng.Delete([]byte("k")); err != nil {
		t.Fatal(err)
	}

	if _, ok, err := eng.Get([]byte("k")); err != nil || ok {
		t.Fatalf("expected k absent after delete, got ok=%v err=%v", ok, err)
	}

	got := drainScan(t, eng, bound.Unbounded, bound.Unbounded)
	if len(got) != 0 {
		t.Fatalf("expected no entries in scan, got %v", got)
	}
}

func TestLayeredPrecedence(t *testing.T) {
	eng, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer eng.Close()

	if err := eng.Put([]byte("k"), []byte("old")); err != nil {
		t.Fatal(err)
	}
	if err := eng.ForceFlush(); err != nil {
		t.Fatal(err)
	}
	if err := eng.Put([]byte("k"), []byte("new")); err != nil {
		t.Fatal(err)
	}

	if v, ok, err := eng.Get([]byte("k")); err != nil || !ok || string(v) != "new" {
		t.Fatalf("got (%s,%v,%v)", v, ok, err)
	}

	got := drainScan(t, eng, bound.Unbounded, bound.Unbounded)
	count := 0
	for _, kv := range got {
		if kv == "k=new" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected k=new exactly once, got %v", got)
	}
}

func TestFreezeAndFlush(t *testing.T) {
	eng, err := Open(t.TempDir(), WithTargetSSTSize(64))
	if err != nil {
		t.Fatal(err)
	}
	defer eng.Close()

	for i := 0; i < 16; i++ {
		key := []byte(fmt.Sprintf("k%07d", i))
		val := []byte(fmt.Sprintf("v%07d", i))
		if err := eng.Put(key, val); err != nil {
			t.Fatal(err)
		}
	}

	for {
		state := eng.state.Load()
		if len(state.immMemtables) == 0 {
			break
		}
		if err := eng.ForceFlushNextImmMemtable(); err != nil {
			t.Fatal(err)
		}
	}

	if len(eng.state.Load().l0SSTables) == 0 {
		t.Fatal("expected at least one L0 sorted run after flush")
	}

	got := drainScan(t, eng, bound.Unbounded, bound.Unbounded)
	if len(got) != 16 {
		t.Fatalf("expected 16 entries, got %d: %v", len(got), got)
	}
	for i := 0; i < 16; i++ {
		want := fmt.Sprintf("k%07d=v%07d", i, i)
		if got[i] != want {
			t.Fatalf("index %d: got %q want %q", i, got[i], want)
		}
	}
}

func TestRangeScanBounds(t *testing.T) {
	eng, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer eng.Close()

	for _, k := range []string{"a", "b", "c", "d", "e"} {
		if err := eng.Put([]byte(k), []byte(k)); err != nil {
			t.Fatal(err)
		}
	}

	got := drainScan(t, eng, bound.Included([]byte("b")), bound.Excluded([]byte("d")))
	want := []string{"b=b", "c=c"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestMergeOrderStabilityAcrossMemtables(t *testing.T) {
	eng, err := Open(t.TempDir(), WithTargetSSTSize(1<<30))
	if err != nil {
		t.Fatal(err)
	}
	defer eng.Close()

	if err := eng.Put([]byte("k"), []byte("v0")); err != nil {
		t.Fatal(err)
	}
	if err := eng.ForceFreezeMemtable(); err != nil {
		t.Fatal(err)
	}
	if err := eng.Put([]byte("k"), []byte("v1")); err != nil {
		t.Fatal(err)
	}
	if err := eng.ForceFreezeMemtable(); err != nil {
		t.Fatal(err)
	}
	if err := eng.Put([]byte("k"), []byte("v2")); err != nil {
		t.Fatal(err)
	}

	if v, ok, err := eng.Get([]byte("k")); err != nil || !ok || string(v) != "v2" {
		t.Fatalf("got (%s,%v,%v)", v, ok, err)
	}

	got := drainScan(t, eng, bound.Unbounded, bound.Unbounded)
	if len(got) != 1 || got[0] != "k=v2" {
		t.Fatalf("got %v", got)
	}
}

func TestOpenRecoversExistingSortedRuns(t *testing.T) {
	dir := t.TempDir()
	eng, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := eng.Put([]byte("a"), []byte("1")); err != nil {
		t.Fatal(err)
	}
	if err := eng.ForceFlush(); err != nil {
		t.Fatal(err)
	}
	if err := eng.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	if v, ok, err := reopened.Get([]byte("a")); err != nil || !ok || string(v) != "1" {
		t.Fatalf("got (%s,%v,%v)", v, ok, err)
	}
}
