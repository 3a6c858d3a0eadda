package block

import (
	"bytes"
	"sort"
)

// Iterator provides forward and seek iteration over one Block. It caches the
// current entry's key so Key() is cheap to call repeatedly.
type Iterator struct {
	blk      *Block
	idx      int
	keyCache []byte
}

// NewIterator constructs an Iterator over blk that starts invalid (past the
// last entry); call SeekToFirst or SeekToKey to position it.
func NewIterator(blk *Block) *Iterator {
	return &Iterator{blk: blk, idx: blk.NumEntries()}
}

// SeekToFirst positions the iterator at entry 0.
func (it *Iterator) SeekToFirst() {
	it.idx = 0
	it.loadKeyCache()
}

// IsValid reports whether the iterator currently addresses an entry.
func (it *Iterator) IsValid() bool {
	return it.idx < it.blk.NumEntries()
}

// Key returns the cached key of the current entry. Valid only when
// IsValid() is true.
func (it *Iterator) Key() []byte { return it.keyCache }

// Value decodes and returns the value of the current entry.
func (it *Iterator) Value() []byte {
	_, value, err := it.blk.EntryAt(it.idx)
	if err != nil {
		return nil
	}
	return value
}

// Next advances to the next entry.
func (it *Iterator) Next() {
	it.idx++
	it.loadKeyCache()
}

func (it *Iterator) loadKeyCache() {
	if !it.IsValid() {
		it.keyCache = nil
		return
	}
	key, err := it.blk.KeyAt(it.idx)
	if err != nil {
		it.keyCache = nil
		it.idx = it.blk.NumEntries()
		return
	}
	it.keyCache = key
}

// SeekToKey positions the iterator at the smallest index i such that
// key_at(i) >= target (strict lower bound), or past the end if no such
// entry exists. If target equals some key, the iterator lands on that key.
func (it *Iterator) SeekToKey(target []byte) {
	n := it.blk.NumEntries()
	i := sort.Search(n, func(mid int) bool {
		key, err := it.blk.KeyAt(mid)
		if err != nil {
			return true
		}
		return bytes.Compare(key, target) >= 0
	})
	it.idx = i
	it.loadKeyCache()
}
