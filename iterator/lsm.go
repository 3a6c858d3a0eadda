package iterator

import "github.com/flashdb/lsmgo/bound"

// LsmIterator wraps the top-level merged read path (a TwoMergeIterator of
// two MergeIterators, per §2's data flow) and enforces the two concerns a
// raw merge stream doesn't: tombstones never reach the client, and a scan
// never yields a key past its upper bound.
type LsmIterator struct {
	inner StorageIterator
	upper bound.Bound
}

// NewLsmIterator constructs an LsmIterator over inner bounded above by
// upper, immediately skipping any leading tombstones or out-of-range entry.
func NewLsmIterator(inner StorageIterator, upper bound.Bound) (*LsmIterator, error) {
	it := &LsmIterator{inner: inner, upper: upper}
	if err := it.moveToNonDeleteNonOverbound(); err != nil {
		return nil, err
	}
	return it, nil
}

func (it *LsmIterator) moveToNonDeleteNonOverbound() error {
	for it.inner.IsValid() && len(it.inner.Value()) == 0 {
		if err := it.inner.Next(); err != nil {
			return err
		}
	}
	if it.inner.IsValid() && !it.upper.ContainsAsUpper(it.inner.Key()) {
		it.inner = exhaustedIterator{}
	}
	return nil
}

// exhaustedIterator is the permanently-invalid sentinel LsmIterator swaps
// in once the upper bound is overrun; the overrun is a termination
// condition, never surfaced as an error (spec §7).
type exhaustedIterator struct{}

func (exhaustedIterator) IsValid() bool { return false }
func (exhaustedIterator) Key() []byte   { return nil }
func (exhaustedIterator) Value() []byte { return nil }
func (exhaustedIterator) Next() error   { return nil }

// IsValid reports whether the iterator currently addresses an in-range,
// non-tombstone entry.
func (it *LsmIterator) IsValid() bool { return it.inner.IsValid() }

// Key returns the current entry's key.
func (it *LsmIterator) Key() []byte { return it.inner.Key() }

// Value returns the current entry's value; never empty while valid.
func (it *LsmIterator) Value() []byte { return it.inner.Value() }

// Next advances past the current entry, then re-applies the
// tombstone-skip and upper-bound checks before returning.
func (it *LsmIterator) Next() error {
	if err := it.inner.Next(); err != nil {
		return err
	}
	return it.moveToNonDeleteNonOverbound()
}
