package memtable

import (
	"github.com/flashdb/lsmgo/bound"
)

// Iterator walks a bounded range [lower, upper) over a MemTable's skip
// list. Per the design note on self-referential memtable iterators (spec
// §9), it holds a reference to the owning MemTable and reifies the current
// (key, value) pair as owned bytes rather than borrowing a live cursor, so
// it can outlive a single lock acquisition.
type Iterator struct {
	mt    *MemTable
	upper bound.Bound
	curr  *skipListNode
	key   []byte
	value []byte
}

// NewIterator constructs an Iterator over mt restricted to [lower, upper).
func NewIterator(mt *MemTable, lower, upper bound.Bound) *Iterator {
	it := &Iterator{mt: mt, upper: upper}

	mt.mu.RLock()
	switch lower.Kind {
	case bound.KindIncluded:
		it.curr = mt.sl.seekGreaterOrEqual(string(lower.Key))
	case bound.KindExcluded:
		n := mt.sl.seekGreaterOrEqual(string(lower.Key))
		if n != nil && n.key == string(lower.Key) {
			n = nextNode(mt.sl, n)
		}
		it.curr = n
	default:
		it.curr = mt.sl.first()
	}
	mt.mu.RUnlock()

	it.loadCurrent()
	return it
}

// nextNode walks one step forward from n; level 0 of the skip list links
// every node in key order, so this is a plain linked-list advance.
func nextNode(sl *skipList, n *skipListNode) *skipListNode {
	return n.forward[0]
}

func (it *Iterator) loadCurrent() {
	if it.curr == nil || !it.upper.ContainsAsUpper([]byte(it.curr.key)) {
		it.curr = nil
		it.key = nil
		it.value = nil
		return
	}
	it.key = []byte(it.curr.key)
	it.value = append([]byte(nil), it.curr.value...)
}

// IsValid reports whether the iterator currently addresses an entry inside
// its bound.
func (it *Iterator) IsValid() bool { return it.curr != nil }

// Key returns the current entry's key.
func (it *Iterator) Key() []byte { return it.key }

// Value returns the current entry's value (empty for a tombstone).
func (it *Iterator) Value() []byte { return it.value }

// Next advances the range cursor, or invalidates the iterator if the range
// is exhausted.
func (it *Iterator) Next() error {
	if it.curr == nil {
		return nil
	}

	it.mt.mu.RLock()
	next := nextNode(it.mt.sl, it.curr)
	it.mt.mu.RUnlock()

	it.curr = next
	it.loadCurrent()
	return nil
}
