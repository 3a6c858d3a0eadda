package iterator

import "container/heap"

// heapItem pairs an iterator with the index it was registered under;
// registration order breaks ties between iterators that currently agree on
// key, per the smaller-index-wins rule.
type heapItem struct {
	idx  int
	iter StorageIterator
}

// itemHeap orders heapItems by (key ascending, idx ascending) so the
// minimum sits at index 0 — that minimum is the next value MergeIterator
// will emit.
type itemHeap []*heapItem

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	ki, kj := h[i].iter.Key(), h[j].iter.Key()
	cmp := compareBytes(ki, kj)
	if cmp != 0 {
		return cmp < 0
	}
	return h[i].idx < h[j].idx
}

func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x any) { *h = append(*h, x.(*heapItem)) }

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func compareBytes(a, b []byte) int {
	switch {
	case string(a) < string(b):
		return -1
	case string(a) > string(b):
		return 1
	default:
		return 0
	}
}

// MergeIterator merges N iterators of the same kind into a single
// key-ascending, duplicate-free stream; on equal keys, the iterator
// registered with the smallest index wins and the others are silently
// advanced past that key.
type MergeIterator struct {
	h       itemHeap
	current *heapItem
	err     error
}

// NewMergeIterator registers each valid iterator in iters under its
// positional index and seeds current with the overall minimum.
func NewMergeIterator(iters []StorageIterator) *MergeIterator {
	m := &MergeIterator{}
	for idx, it := range iters {
		if it != nil && it.IsValid() {
			m.h = append(m.h, &heapItem{idx: idx, iter: it})
		}
	}
	heap.Init(&m.h)
	if m.h.Len() > 0 {
		m.current = heap.Pop(&m.h).(*heapItem)
	}
	return m
}

// IsValid reports whether the merge stream currently addresses an entry.
func (m *MergeIterator) IsValid() bool {
	return m.err == nil && m.current != nil && m.current.iter.IsValid()
}

// Key returns the current entry's key.
func (m *MergeIterator) Key() []byte {
	if m.current == nil {
		return nil
	}
	return m.current.iter.Key()
}

// Value returns the current entry's value.
func (m *MergeIterator) Value() []byte {
	if m.current == nil {
		return nil
	}
	return m.current.iter.Value()
}

// Next implements the drain-equal-keys-then-advance-current algorithm:
// every other iterator still positioned on the outgoing key is advanced
// (and dropped if it errors or becomes invalid) before current itself
// advances, and the new minimum is installed as current.
func (m *MergeIterator) Next() error {
	if m.err != nil {
		return m.err
	}
	if m.current == nil {
		return nil
	}

	outdated := m.current.iter.Key()

	for m.h.Len() > 0 && compareBytes(m.h[0].iter.Key(), outdated) == 0 {
		top := heap.Pop(&m.h).(*heapItem)
		if err := top.iter.Next(); err != nil {
			m.err = err
			return err
		}
		if top.iter.IsValid() {
			heap.Push(&m.h, top)
		}
	}

	if err := m.current.iter.Next(); err != nil {
		m.err = err
		return err
	}

	if !m.current.iter.IsValid() {
		if m.h.Len() > 0 {
			m.current = heap.Pop(&m.h).(*heapItem)
		} else {
			m.current = nil
		}
		return nil
	}

	if m.h.Len() > 0 {
		top := m.h[0]
		cmp := compareBytes(top.iter.Key(), m.current.iter.Key())
		if cmp < 0 || (cmp == 0 && top.idx < m.current.idx) {
			heap.Pop(&m.h)
			heap.Push(&m.h, m.current)
			m.current = top
		}
	}

	return nil
}
