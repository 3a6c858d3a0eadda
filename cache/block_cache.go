// Package cache provides the block cache: a keyed memoizer in front of the
// sorted-run block loader that coalesces concurrent misses on the same key
// to a single loader invocation, per spec §6.
package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/flashdb/lsmgo/block"
)

// Key addresses one block within one sorted run.
type Key struct {
	RunID    uint64
	BlockIdx uint64
}

// BlockCache is a bounded, concurrency-safe cache of decoded blocks keyed by
// (run id, block index). Capacity is the number of blocks retained; eviction
// follows the wrapped LRU's policy.
type BlockCache struct {
	cache *lru.Cache[Key, *block.Block]
	group singleflight.Group
}

// New constructs a BlockCache holding at most capacity blocks.
func New(capacity int) (*BlockCache, error) {
	c, err := lru.New[Key, *block.Block](capacity)
	if err != nil {
		return nil, err
	}
	return &BlockCache{cache: c}, nil
}

// TryGetWith returns the cached block for key, invoking loader on a miss.
// Concurrent callers racing on the same key share a single loader call.
func (bc *BlockCache) TryGetWith(key Key, loader func() (*block.Block, error)) (*block.Block, error) {
	if blk, ok := bc.cache.Get(key); ok {
		return blk, nil
	}

	v, err, _ := bc.group.Do(keyToken(key), func() (any, error) {
		if blk, ok := bc.cache.Get(key); ok {
			return blk, nil
		}
		blk, err := loader()
		if err != nil {
			return nil, err
		}
		bc.cache.Add(key, blk)
		return blk, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*block.Block), nil
}

func keyToken(key Key) string {
	buf := make([]byte, 0, 20)
	buf = appendUint64(buf, key.RunID)
	buf = append(buf, ':')
	buf = appendUint64(buf, key.BlockIdx)
	return string(buf)
}

func appendUint64(buf []byte, v uint64) []byte {
	if v == 0 {
		return append(buf, '0')
	}
	var tmp [20]byte
	i := len(tmp)
	for v > 0 {
		i--
		tmp[i] = byte('0' + v%10)
		v /= 10
	}
	return append(buf, tmp[i:]...)
}
