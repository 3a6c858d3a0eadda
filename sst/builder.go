package sst

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/flashdb/lsmgo/block"
	"github.com/flashdb/lsmgo/cache"
)

// Builder streams sorted (key, value) pairs into blocks, accumulating the
// block-meta directory as it goes, mirroring the teacher's
// diskSSTWriter.Write/appendDataBlock/Flush sequence generalized to the
// fixed-width block-meta format spec'd for this tier.
type Builder struct {
	blockSize int
	blk       *block.Builder
	data      []byte
	meta      []BlockMeta
	filter    *bloom.BloomFilter
	firstKey  []byte
	lastKey   []byte
}

// NewBuilder constructs a Builder that packs blocks up to blockSize bytes.
func NewBuilder(blockSize int) *Builder {
	return &Builder{
		blockSize: blockSize,
		blk:       block.NewBuilder(blockSize),
		filter:    bloom.NewWithEstimates(bloomEstimatedKeys, bloomFalsePositiveRate),
	}
}

// Add appends one entry to the run under construction. Entries must arrive
// in ascending key order.
func (b *Builder) Add(key, value []byte) error {
	if b.firstKey == nil {
		b.firstKey = append([]byte(nil), key...)
		b.meta = append(b.meta, BlockMeta{Offset: uint32(len(b.data)), FirstKey: append([]byte(nil), key...)})
	}

	if !b.blk.Add(key, value) {
		if err := b.flushBlock(); err != nil {
			return err
		}
		b.blk = block.NewBuilder(b.blockSize)
		b.meta = append(b.meta, BlockMeta{Offset: uint32(len(b.data)), FirstKey: append([]byte(nil), key...)})
		if !b.blk.Add(key, value) {
			return fmt.Errorf("sst: entry rejected by fresh block builder")
		}
	}

	b.meta[len(b.meta)-1].LastKey = append([]byte(nil), key...)
	b.lastKey = append([]byte(nil), key...)
	b.filter.Add(key)
	return nil
}

// AddIter drains a (key, value) producing iterator in sorted order.
func (b *Builder) AddIter(iter interface {
	IsValid() bool
	Key() []byte
	Value() []byte
	Next() error
}) error {
	for iter.IsValid() {
		if err := b.Add(iter.Key(), iter.Value()); err != nil {
			return err
		}
		if err := iter.Next(); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) flushBlock() error {
	if b.blk.IsEmpty() {
		return nil
	}
	encoded := b.blk.Build().Encode()
	b.data = append(b.data, encoded...)
	return nil
}

// Build finalizes the run, writes it to path, fsyncs, and reopens it
// read-only as a *SortedRun registered under id with the given block cache
// (may be nil to disable caching for this run).
func (b *Builder) Build(id uint64, blockCache *cache.BlockCache, path string) (*SortedRun, error) {
	if err := b.flushBlock(); err != nil {
		return nil, err
	}

	metaOffset := uint32(len(b.data))
	metaBytes, err := encodeMeta(b.meta)
	if err != nil {
		return nil, err
	}

	bloomOffset := metaOffset + uint32(len(metaBytes))
	bloomBytes, err := encodeBloom(b.filter)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Write(b.data)
	buf.Write(metaBytes)
	buf.Write(bloomBytes)
	if err := binary.Write(&buf, binary.BigEndian, bloomOffset); err != nil {
		return nil, fmt.Errorf("sst: write bloom_offset: %w", err)
	}
	if err := binary.Write(&buf, binary.BigEndian, metaOffset); err != nil {
		return nil, fmt.Errorf("sst: write meta_offset: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("sst: create %s: %w", path, err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return nil, fmt.Errorf("sst: write %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return nil, fmt.Errorf("sst: sync %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("sst: close %s: %w", path, err)
	}

	rf, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sst: reopen %s: %w", path, err)
	}

	return &SortedRun{
		id:          id,
		file:        rf,
		blockMeta:   b.meta,
		metaOffset:  metaOffset,
		bloomOffset: bloomOffset,
		firstKey:    b.firstKey,
		lastKey:     b.lastKey,
		filter:      b.filter,
		cache:       blockCache,
	}, nil
}
