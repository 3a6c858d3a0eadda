package block

import "encoding/binary"

// DefaultBlockSize is the target block size used when no Options override it;
// matches the teacher's 4KiB default data block budget.
const DefaultBlockSize = 4096

// MaxValueSize is the largest value a block entry can carry; the value
// length field is a u16 per the wire format.
const MaxValueSize = 1<<16 - 1

// Builder packs entries into a block until the configured size budget is
// reached, per the accounting rule:
//
//	projected = len(data) + key_len + value_len + 2 + 2 + offsets_count*2 + 2 + 2
//
// A non-empty builder rejects an entry that would overflow the budget; an
// empty builder always accepts its first entry, however far over the budget,
// so progress is never blocked. A value longer than MaxValueSize is rejected
// even by an empty builder. The +2/+2 account for the new offset slot and the
// trailing entry-count field respectively.
type Builder struct {
	blockSize int
	data      []byte
	offsets   []uint16
	firstKey  []byte
}

// NewBuilder constructs a Builder targeting the given block size in bytes.
func NewBuilder(blockSize int) *Builder {
	return &Builder{blockSize: blockSize}
}

// IsEmpty reports whether the builder has accepted any entry yet.
func (b *Builder) IsEmpty() bool { return len(b.offsets) == 0 }

// FirstKey returns the first key accepted by this builder, or nil if empty.
func (b *Builder) FirstKey() []byte { return b.firstKey }

func (b *Builder) projectedSize(keyLen, valueLen int) int {
	return len(b.data) + keyLen + valueLen + 2 + 2 + len(b.offsets)*2 + 2 + 2
}

// Add attempts to append (key, value) to the block under construction. It
// reports whether the entry was accepted.
func (b *Builder) Add(key, value []byte) bool {
	if len(value) > MaxValueSize {
		return false
	}
	if !b.IsEmpty() && b.projectedSize(len(key), len(value)) > b.blockSize {
		return false
	}

	if b.IsEmpty() {
		b.firstKey = append([]byte(nil), key...)
	}

	b.offsets = append(b.offsets, uint16(len(b.data)))
	b.data = binary.BigEndian.AppendUint16(b.data, uint16(len(key)))
	b.data = append(b.data, key...)
	b.data = binary.BigEndian.AppendUint16(b.data, uint16(len(value)))
	b.data = append(b.data, value...)
	return true
}

// Build finalizes the builder into an immutable Block.
func (b *Builder) Build() *Block {
	data := append([]byte(nil), b.data...)
	offsets := append([]uint16(nil), b.offsets...)
	return &Block{data: data, offsets: offsets}
}
