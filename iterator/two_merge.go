package iterator

// TwoMergeIterator merges two, possibly heterogeneous, StorageIterators
// into one stream. On equal keys it emits A's (key, value) and advances
// both sides, so A always wins ties.
type TwoMergeIterator struct {
	a, b    StorageIterator
	current byte // 'a' or 'b'
}

// NewTwoMergeIterator constructs a TwoMergeIterator over a and b, selecting
// whichever currently holds the smaller key (A on ties; the valid side when
// only one side is valid).
func NewTwoMergeIterator(a, b StorageIterator) *TwoMergeIterator {
	t := &TwoMergeIterator{a: a, b: b}
	t.selectSide()
	return t
}

func (t *TwoMergeIterator) selectSide() {
	switch {
	case t.a.IsValid() && t.b.IsValid():
		if compareBytes(t.a.Key(), t.b.Key()) > 0 {
			t.current = 'b'
		} else {
			t.current = 'a'
		}
	case t.a.IsValid():
		t.current = 'a'
	default:
		t.current = 'b'
	}
}

// IsValid reports whether the selected side currently addresses an entry.
func (t *TwoMergeIterator) IsValid() bool {
	if t.current == 'a' {
		return t.a.IsValid()
	}
	return t.b.IsValid()
}

// Key returns the selected side's current key.
func (t *TwoMergeIterator) Key() []byte {
	if t.current == 'a' {
		return t.a.Key()
	}
	return t.b.Key()
}

// Value returns the selected side's current value.
func (t *TwoMergeIterator) Value() []byte {
	if t.current == 'a' {
		return t.a.Value()
	}
	return t.b.Value()
}

// Next advances according to which side(s) are valid and in agreement,
// then recomputes the selector.
func (t *TwoMergeIterator) Next() error {
	switch {
	case t.a.IsValid() && t.b.IsValid():
		cmp := compareBytes(t.a.Key(), t.b.Key())
		switch {
		case cmp < 0:
			if err := t.a.Next(); err != nil {
				return err
			}
		case cmp == 0:
			if err := t.a.Next(); err != nil {
				return err
			}
			if err := t.b.Next(); err != nil {
				return err
			}
		default:
			if err := t.b.Next(); err != nil {
				return err
			}
		}
		t.selectSide()
	case t.a.IsValid():
		if err := t.a.Next(); err != nil {
			return err
		}
		t.current = 'a'
	case t.b.IsValid():
		if err := t.b.Next(); err != nil {
			return err
		}
		t.current = 'b'
	}
	return nil
}
