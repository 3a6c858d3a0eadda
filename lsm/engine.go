// Package lsm assembles the block/sst/memtable/iterator/wal building blocks
// into the storage engine surface: open, put, delete, get, scan, and the
// freeze/flush machinery that moves data from memory to L0 sorted runs.
// Grounded on original_source/mini-lsm-starter/src/lsm_storage.rs, with
// concurrency control generalized from the teacher's read/write split
// around its config store.
package lsm

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/flashdb/lsmgo/bound"
	"github.com/flashdb/lsmgo/cache"
	"github.com/flashdb/lsmgo/iterator"
	"github.com/flashdb/lsmgo/memtable"
	"github.com/flashdb/lsmgo/segmentmanager"
	"github.com/flashdb/lsmgo/sst"
	"github.com/flashdb/lsmgo/wal"
)

// ErrFullCompactionUnsupported is returned by ForceFullCompaction: deeper
// leveled/tiered compaction is out of scope at this tier (spec §6).
var ErrFullCompactionUnsupported = errors.New("lsm: force_full_compaction is out of scope")

var sstFileNamePattern = regexp.MustCompile(`^(\d{5})\.sst$`)

// Engine is an embedded, ordered key-value storage engine backed by an
// in-memory memtable chain and a growing set of on-disk L0 sorted runs.
type Engine struct {
	path string
	opts Options

	stateLock sync.Mutex
	state     atomic.Pointer[EngineState]

	nextID     atomic.Uint64
	blockCache *cache.BlockCache

	walWriters   map[uint64]*wal.Writer
	walWritersMu sync.Mutex
}

// Open opens (or creates) an engine rooted at path.
func Open(path string, options ...Option) (*Engine, error) {
	opts := defaultOptions()
	for _, o := range options {
		o(&opts)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("lsm: create %s: %w", path, err)
	}

	bc, err := cache.New(opts.BlockCacheCapacity)
	if err != nil {
		return nil, fmt.Errorf("lsm: build block cache: %w", err)
	}

	e := &Engine{
		path:       path,
		opts:       opts,
		blockCache: bc,
		walWriters: make(map[uint64]*wal.Writer),
	}

	state := &EngineState{sstables: make(map[uint64]*sst.SortedRun)}

	ids, err := e.discoverSSTables(path)
	if err != nil {
		return nil, err
	}
	var maxID uint64
	for _, id := range ids {
		run, err := sst.Open(id, e.sstPath(id), e.blockCache)
		if err != nil {
			return nil, fmt.Errorf("lsm: reopen sorted run %05d: %w", id, err)
		}
		state.sstables[id] = run
		state.l0SSTables = append([]uint64{id}, state.l0SSTables...)
		if id > maxID {
			maxID = id
		}
	}

	e.nextID.Store(maxID + 1)
	mt, err := e.newMemtable()
	if err != nil {
		return nil, err
	}
	state.activeMemtable = mt

	e.state.Store(state)
	return e, nil
}

func (e *Engine) discoverSSTables(path string) ([]uint64, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("lsm: read %s: %w", path, err)
	}

	var ids []uint64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := sstFileNamePattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		id, err := strconv.ParseUint(m[1], 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (e *Engine) sstPath(id uint64) string {
	return filepath.Join(e.path, fmt.Sprintf("%05d.sst", id))
}

func (e *Engine) walDir(id uint64) string {
	return filepath.Join(e.path, fmt.Sprintf("%05d.wal", id))
}

// newMemtable allocates a fresh memtable with the next id, wiring a WAL
// writer into it when enabled.
func (e *Engine) newMemtable() (*memtable.MemTable, error) {
	id := e.nextID.Add(1) - 1
	mt := memtable.New(id)

	if !e.opts.EnableWAL {
		return mt, nil
	}

	sm, err := segmentmanager.NewDiskSegmentManager(e.walDir(id))
	if err != nil {
		return nil, fmt.Errorf("lsm: open wal for memtable %05d: %w", id, err)
	}
	w := wal.NewWriter(16, sm)

	e.walWritersMu.Lock()
	e.walWriters[id] = w
	e.walWritersMu.Unlock()

	mt.WithWAL(func(key, value []byte, isDelete bool) error {
		op := wal.OperationPut
		if isDelete {
			op = wal.OperationDelete
		}
		return w.Write(wal.NewLog(op, key, value))
	})
	return mt, nil
}

// Put inserts key->value. An empty value records a tombstone.
func (e *Engine) Put(key, value []byte) error {
	state := e.state.Load()
	if err := state.activeMemtable.Put(key, value); err != nil {
		return err
	}
	return e.tryFreeze(state.activeMemtable.ApproximateSize())
}

// Delete removes key; equivalent to Put(key, nil).
func (e *Engine) Delete(key []byte) error {
	return e.Put(key, nil)
}

func (e *Engine) tryFreeze(size uint64) error {
	if size <= uint64(e.opts.TargetSSTSize) {
		return nil
	}

	e.stateLock.Lock()
	defer e.stateLock.Unlock()

	state := e.state.Load()
	if state.activeMemtable.ApproximateSize() <= uint64(e.opts.TargetSSTSize) {
		return nil
	}
	return e.forceFreezeMemtableLocked()
}

// ForceFreezeMemtable freezes the active memtable unconditionally, for use
// as a test hook or by callers that need a flushable snapshot on demand.
func (e *Engine) ForceFreezeMemtable() error {
	e.stateLock.Lock()
	defer e.stateLock.Unlock()
	return e.forceFreezeMemtableLocked()
}

func (e *Engine) forceFreezeMemtableLocked() error {
	newMT, err := e.newMemtable()
	if err != nil {
		return err
	}

	old := e.state.Load()
	next := old.clone()
	next.immMemtables = append([]*memtable.MemTable{old.activeMemtable}, next.immMemtables...)
	next.activeMemtable = newMT
	e.state.Store(next)
	return nil
}

// ForceFlushNextImmMemtable flushes the oldest immutable memtable to a new
// L0 sorted run.
func (e *Engine) ForceFlushNextImmMemtable() error {
	e.stateLock.Lock()
	defer e.stateLock.Unlock()

	old := e.state.Load()
	if len(old.immMemtables) == 0 {
		return errors.New("lsm: no immutable memtable to flush")
	}
	oldest := old.immMemtables[len(old.immMemtables)-1]

	builder := sst.NewBuilder(e.opts.BlockSize)
	it := memtable.NewIterator(oldest, bound.Unbounded, bound.Unbounded)
	if err := builder.AddIter(it); err != nil {
		return err
	}

	run, err := builder.Build(oldest.ID(), e.blockCache, e.sstPath(oldest.ID()))
	if err != nil {
		return err
	}

	next := old.clone()
	next.immMemtables = next.immMemtables[:len(next.immMemtables)-1]
	next.l0SSTables = append([]uint64{oldest.ID()}, next.l0SSTables...)
	next.sstables[oldest.ID()] = run
	e.state.Store(next)

	e.walWritersMu.Lock()
	if w, ok := e.walWriters[oldest.ID()]; ok {
		delete(e.walWriters, oldest.ID())
		e.walWritersMu.Unlock()
		return w.Close()
	}
	e.walWritersMu.Unlock()
	return nil
}

// ForceFlush is the test hook described in spec §6: freeze the active
// memtable, then flush one immutable memtable to L0.
func (e *Engine) ForceFlush() error {
	if err := e.ForceFreezeMemtable(); err != nil {
		return err
	}
	return e.ForceFlushNextImmMemtable()
}

// ForceFullCompaction is out of scope at this tier; it exists only so the
// engine surface matches spec §6's enumerated interface.
func (e *Engine) ForceFullCompaction() error {
	return ErrFullCompactionUnsupported
}

// Get looks up key, checking the active memtable, then immutable
// memtables newest-first, then L0 sorted runs newest-first. A tombstone
// (empty value) reports absent.
func (e *Engine) Get(key []byte) ([]byte, bool, error) {
	state := e.state.Load()

	if v, ok := state.activeMemtable.Get(key); ok {
		return tombstoneToAbsent(v)
	}
	for _, mt := range state.immMemtables {
		if v, ok := mt.Get(key); ok {
			return tombstoneToAbsent(v)
		}
	}

	for _, id := range state.l0SSTables {
		run := state.sstables[id]
		if !run.MayContain(key) {
			continue
		}
		it, err := sst.SeekToKeyIterator(run, key)
		if err != nil {
			return nil, false, err
		}
		if it.IsValid() && bytesEqual(it.Key(), key) {
			return tombstoneToAbsent(it.Value())
		}
	}

	return nil, false, nil
}

func tombstoneToAbsent(v []byte) ([]byte, bool, error) {
	if len(v) == 0 {
		return nil, false, nil
	}
	return v, true, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Scan returns a StorageIterator over [lower, upper) composed per spec
// §4.10: a TwoMergeIterator of (MergeIterator of memtables, MergeIterator
// of L0 runs), wrapped in an LsmIterator for tombstone/bound enforcement
// and a FusedIterator for error/exhaustion stickiness.
func (e *Engine) Scan(lower, upper bound.Bound) (iterator.StorageIterator, error) {
	state := e.state.Load()

	memIters := make([]iterator.StorageIterator, 0, 1+len(state.immMemtables))
	memIters = append(memIters, memtable.NewIterator(state.activeMemtable, lower, upper))
	for _, mt := range state.immMemtables {
		memIters = append(memIters, memtable.NewIterator(mt, lower, upper))
	}

	sstIters := make([]iterator.StorageIterator, 0, len(state.l0SSTables))
	for _, id := range state.l0SSTables {
		run := state.sstables[id]
		it, err := seekSSTIterator(run, lower)
		if err != nil {
			return nil, err
		}
		sstIters = append(sstIters, it)
	}

	two := iterator.NewTwoMergeIterator(
		iterator.NewMergeIterator(memIters),
		iterator.NewMergeIterator(sstIters),
	)
	lsmIt, err := iterator.NewLsmIterator(two, upper)
	if err != nil {
		return nil, err
	}
	return iterator.NewFusedIterator(lsmIt), nil
}

func seekSSTIterator(run *sst.SortedRun, lower bound.Bound) (*sst.Iterator, error) {
	switch lower.Kind {
	case bound.KindIncluded:
		return sst.SeekToKeyIterator(run, lower.Key)
	case bound.KindExcluded:
		it, err := sst.SeekToKeyIterator(run, lower.Key)
		if err != nil {
			return nil, err
		}
		if it.IsValid() && bytesEqual(it.Key(), lower.Key) {
			if err := it.Next(); err != nil {
				return nil, err
			}
		}
		return it, nil
	default:
		return sst.SeekToFirstIterator(run)
	}
}

// Close releases the engine's open sorted-run file handles and WAL
// writers.
func (e *Engine) Close() error {
	state := e.state.Load()
	var firstErr error
	for id, run := range state.sstables {
		if err := run.Close(); err != nil {
			if firstErr == nil {
				firstErr = err
			} else {
				log.Printf("lsm: close sorted run %05d: %v", id, err)
			}
		}
	}
	e.walWritersMu.Lock()
	for id, w := range e.walWriters {
		if err := w.Close(); err != nil {
			if firstErr == nil {
				firstErr = err
			} else {
				log.Printf("lsm: close wal writer %05d: %v", id, err)
			}
		}
	}
	e.walWritersMu.Unlock()
	return firstErr
}
