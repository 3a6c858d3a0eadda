package lsm

import (
	"github.com/flashdb/lsmgo/memtable"
	"github.com/flashdb/lsmgo/sst"
)

// Level is one entry of the leveled run list: a level number and the ids of
// the sorted runs assigned to it. Unused beyond L0 at this tier (spec §3)
// but kept present in EngineState so the data model matches the one
// compaction will eventually grow into.
type Level struct {
	LevelNo int
	RunIDs  []uint64
}

// EngineState is an immutable snapshot of the engine's write path: the
// active memtable, the immutable memtables awaiting flush (index 0 is the
// most recently frozen), the L0 sorted runs (index 0 is the most recently
// flushed), and the leveled run list above L0. Readers load a *EngineState
// via the engine's atomic pointer and never see it mutated in place — every
// transition installs a freshly built EngineState (spec §5).
//
// Every id in l0SSTables or any levels[*].RunIDs must resolve in sstables
// (spec §3); since no level above L0 is populated at this tier, that
// invariant currently only constrains l0SSTables.
type EngineState struct {
	activeMemtable *memtable.MemTable
	immMemtables   []*memtable.MemTable
	l0SSTables     []uint64
	levels         []Level
	sstables       map[uint64]*sst.SortedRun
}

// clone returns a shallow copy of s suitable for building the next state
// transition: slices and the map are copied so appends/removals on the
// clone never alias the original.
func (s *EngineState) clone() *EngineState {
	next := &EngineState{
		activeMemtable: s.activeMemtable,
		sstables:       make(map[uint64]*sst.SortedRun, len(s.sstables)),
	}
	next.immMemtables = append([]*memtable.MemTable(nil), s.immMemtables...)
	next.l0SSTables = append([]uint64(nil), s.l0SSTables...)
	next.levels = append([]Level(nil), s.levels...)
	for id, run := range s.sstables {
		next.sstables[id] = run
	}
	return next
}
