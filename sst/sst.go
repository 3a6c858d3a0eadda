// Package sst implements the sorted run (SST): a file containing a sequence
// of blocks plus a trailing metadata index, and the builder/iterator
// machinery around it.
//
// File layout (big-endian throughout, no checksums at this tier):
//
//	block_0 || block_1 || ... || block_{M-1} || meta_region || bloom_region || bloom_offset:u32 || meta_offset:u32
//	meta_region  = N:u16 || BlockMeta x N
//	bloom_region = k:u32 || m:u32 || bit_bytes (bit_bytes is self-describing per bloom/v3's own WriteTo format)
package sst

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/flashdb/lsmgo/block"
	"github.com/flashdb/lsmgo/cache"
)

// SortedRun is an open, read-only handle to an on-disk sorted run. Many
// iterators may read from it concurrently; the underlying file handle is
// released only when the run is closed.
type SortedRun struct {
	id          uint64
	mu          sync.Mutex
	file        *os.File
	blockMeta   []BlockMeta
	metaOffset  uint32
	bloomOffset uint32
	firstKey    []byte
	lastKey     []byte
	filter      *bloom.BloomFilter
	cache       *cache.BlockCache
}

// ID returns the run's identifier, used both for its file name and as the
// cache key namespace for its blocks.
func (r *SortedRun) ID() uint64 { return r.id }

// FirstKey returns the smallest key stored in the run.
func (r *SortedRun) FirstKey() []byte { return r.firstKey }

// LastKey returns the largest key stored in the run.
func (r *SortedRun) LastKey() []byte { return r.lastKey }

// BlockCount reports the number of data blocks in the run.
func (r *SortedRun) BlockCount() int { return len(r.blockMeta) }

// MayContain reports whether the run's bloom filter allows key to be
// present. A false return means key is definitely absent; a true return is
// only a hint, never a guarantee — callers must still perform the real
// lookup. Never changes get's result, only how many runs it opens.
func (r *SortedRun) MayContain(key []byte) bool {
	if r.filter == nil {
		return true
	}
	return r.filter.Test(key)
}

// Path reports the path to the open sorted-run file.
func (r *SortedRun) Path() string {
	return r.file.Name()
}

// Close releases the run's file handle.
func (r *SortedRun) Close() error {
	return r.file.Close()
}

// readBlock reads and decodes block i directly from disk, bypassing the
// cache. It fails with ErrOutOfRange if i >= BlockCount().
func (r *SortedRun) readBlock(i int) (*block.Block, error) {
	if i < 0 || i >= len(r.blockMeta) {
		return nil, fmt.Errorf("%w: block %d, have %d blocks", ErrOutOfRange, i, len(r.blockMeta))
	}

	start := int64(r.blockMeta[i].Offset)
	var end int64
	if i+1 < len(r.blockMeta) {
		end = int64(r.blockMeta[i+1].Offset)
	} else {
		end = int64(r.metaOffset)
	}

	raw := make([]byte, end-start)

	r.mu.Lock()
	_, err := r.file.ReadAt(raw, start)
	r.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("sst: read block %d: %w", i, err)
	}

	return block.Decode(raw)
}

// ReadBlockCached consults the block cache keyed by (run id, block index);
// on a miss it loads from disk and populates the cache. With no cache
// attached it behaves identically to a direct disk read.
func (r *SortedRun) ReadBlockCached(i int) (*block.Block, error) {
	if r.cache == nil {
		return r.readBlock(i)
	}
	return r.cache.TryGetWith(cache.Key{RunID: r.id, BlockIdx: uint64(i)}, func() (*block.Block, error) {
		return r.readBlock(i)
	})
}

// FindBlockIdx returns the smallest i such that block_meta[i].LastKey >=
// target. If every block ends before target, it returns BlockCount().
func (r *SortedRun) FindBlockIdx(target []byte) int {
	return sort.Search(len(r.blockMeta), func(i int) bool {
		return bytes.Compare(r.blockMeta[i].LastKey, target) >= 0
	})
}

// Open reopens a previously built sorted run from disk, re-deriving its
// trailers, for use when an engine restarts against existing L0 files.
func Open(id uint64, path string, blockCache *cache.BlockCache) (*SortedRun, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sst: open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("sst: stat %s: %w", path, err)
	}
	size := info.Size()
	if size < 8 {
		f.Close()
		return nil, fmt.Errorf("%w: file shorter than trailer", ErrCorrupt)
	}

	trailer := make([]byte, 8)
	if _, err := f.ReadAt(trailer, size-8); err != nil {
		f.Close()
		return nil, fmt.Errorf("sst: read trailer: %w", err)
	}
	bloomOffset := beUint32(trailer[0:4])
	metaOffset := beUint32(trailer[4:8])

	if int64(bloomOffset) > size || int64(metaOffset) > int64(bloomOffset) {
		f.Close()
		return nil, fmt.Errorf("%w: trailer offsets out of range", ErrCorrupt)
	}

	metaBuf := make([]byte, int64(bloomOffset)-int64(metaOffset))
	if _, err := f.ReadAt(metaBuf, int64(metaOffset)); err != nil {
		f.Close()
		return nil, fmt.Errorf("sst: read meta region: %w", err)
	}
	metas, err := decodeMeta(metaBuf)
	if err != nil {
		f.Close()
		return nil, err
	}

	bloomBuf := make([]byte, size-8-int64(bloomOffset))
	if _, err := f.ReadAt(bloomBuf, int64(bloomOffset)); err != nil {
		f.Close()
		return nil, fmt.Errorf("sst: read bloom region: %w", err)
	}
	filter, err := decodeBloom(bloomBuf)
	if err != nil {
		f.Close()
		return nil, err
	}

	var firstKey, lastKey []byte
	if len(metas) > 0 {
		firstKey = metas[0].FirstKey
		lastKey = metas[len(metas)-1].LastKey
	}

	return &SortedRun{
		id:          id,
		file:        f,
		blockMeta:   metas,
		metaOffset:  metaOffset,
		bloomOffset: bloomOffset,
		firstKey:    firstKey,
		lastKey:     lastKey,
		filter:      filter,
		cache:       blockCache,
	}, nil
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
