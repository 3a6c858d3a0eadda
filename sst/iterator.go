package sst

import "github.com/flashdb/lsmgo/block"

// Iterator drives a block.Iterator across the successive blocks of one
// SortedRun, presenting a single forward/seekable stream over the whole
// run.
type Iterator struct {
	run      *SortedRun
	blkIter  *block.Iterator
	blkIdx   int
	blkCount int
	err      error
}

// NewIterator constructs an Iterator over run that starts invalid, with no
// block loaded; Next is a no-op until SeekToFirst or SeekToKey positions it.
func NewIterator(run *SortedRun) *Iterator {
	return &Iterator{run: run, blkIdx: -1, blkCount: run.BlockCount()}
}

// SeekToFirstIterator constructs an Iterator already positioned at the
// run's first entry.
func SeekToFirstIterator(run *SortedRun) (*Iterator, error) {
	it := NewIterator(run)
	if err := it.SeekToFirst(); err != nil {
		return nil, err
	}
	return it, nil
}

// SeekToKeyIterator constructs an Iterator positioned at the lower bound of
// target within run.
func SeekToKeyIterator(run *SortedRun, target []byte) (*Iterator, error) {
	it := NewIterator(run)
	if err := it.SeekToKey(target); err != nil {
		return nil, err
	}
	return it, nil
}

// SeekToFirst positions the iterator at block 0, entry 0.
func (it *Iterator) SeekToFirst() error {
	if it.blkCount == 0 {
		it.blkIdx = 0
		it.blkIter = nil
		return nil
	}
	return it.loadBlock(0, func(bi *block.Iterator) { bi.SeekToFirst() })
}

// SeekToKey positions the iterator at the lower bound of target across the
// whole run, skipping forward across empty/over-run blocks as needed.
func (it *Iterator) SeekToKey(target []byte) error {
	i := it.run.FindBlockIdx(target)
	if i >= it.blkCount {
		it.blkIdx = it.blkCount
		it.blkIter = nil
		return nil
	}

	if err := it.loadBlock(i, func(bi *block.Iterator) { bi.SeekToKey(target) }); err != nil {
		return err
	}

	for !it.IsValid() && it.blkIdx+1 < it.blkCount {
		if err := it.loadBlock(it.blkIdx+1, func(bi *block.Iterator) { bi.SeekToFirst() }); err != nil {
			return err
		}
	}
	return nil
}

func (it *Iterator) loadBlock(idx int, position func(*block.Iterator)) error {
	blk, err := it.run.ReadBlockCached(idx)
	if err != nil {
		it.err = err
		return err
	}
	it.blkIdx = idx
	it.blkIter = block.NewIterator(blk)
	position(it.blkIter)
	return nil
}

// IsValid reports whether the iterator currently addresses an entry.
func (it *Iterator) IsValid() bool {
	return it.err == nil && it.blkIter != nil && it.blkIter.IsValid()
}

// Key returns the current entry's key.
func (it *Iterator) Key() []byte { return it.blkIter.Key() }

// Value returns the current entry's value.
func (it *Iterator) Value() []byte { return it.blkIter.Value() }

// Next advances the inner block iterator, rolling over to the next block
// when the current one is exhausted.
func (it *Iterator) Next() error {
	if it.err != nil {
		return it.err
	}
	if it.blkIter == nil {
		return nil
	}

	it.blkIter.Next()
	if !it.blkIter.IsValid() && it.blkIdx+1 < it.blkCount {
		return it.loadBlock(it.blkIdx+1, func(bi *block.Iterator) { bi.SeekToFirst() })
	}
	return nil
}
