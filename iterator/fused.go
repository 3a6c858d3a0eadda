package iterator

import "errors"

// ErrIteratorTainted is returned by FusedIterator.Next once the wrapped
// iterator has already errored once.
var ErrIteratorTainted = errors.New("iterator: tainted by a prior error")

// FusedIterator wraps any StorageIterator so that once it is invalid or has
// errored, it stays that way: IsValid reports false and Next becomes a
// no-op (or, after an error, keeps returning that error).
type FusedIterator struct {
	inner      StorageIterator
	hasErrored bool
}

// NewFusedIterator wraps inner.
func NewFusedIterator(inner StorageIterator) *FusedIterator {
	return &FusedIterator{inner: inner}
}

// IsValid reports false once the iterator has errored, otherwise defers to
// the wrapped iterator.
func (f *FusedIterator) IsValid() bool {
	if f.hasErrored {
		return false
	}
	return f.inner.IsValid()
}

// Key returns the wrapped iterator's current key.
func (f *FusedIterator) Key() []byte { return f.inner.Key() }

// Value returns the wrapped iterator's current value.
func (f *FusedIterator) Value() []byte { return f.inner.Value() }

// Next is a no-op once already invalid, latches hasErrored on a failing
// advance, and always fails fast once tainted.
func (f *FusedIterator) Next() error {
	if f.hasErrored {
		return ErrIteratorTainted
	}
	if !f.inner.IsValid() {
		return nil
	}
	if err := f.inner.Next(); err != nil {
		f.hasErrored = true
		return err
	}
	return nil
}
