// Package block implements the immutable, self-describing sorted array of
// key/value entries that is the unit of I/O and caching inside a sorted run.
//
// Wire format (big-endian throughout):
//
//	data_bytes || offset_bytes (u16 x N) || N:u16
//
// where data is the concatenation of entries, each encoded as
//
//	key_len:u16 | key_bytes | value_len:u16 | value_bytes
package block

import (
	"encoding/binary"
	"fmt"
)

// ErrCorrupt is returned when a decoded block fails a structural check.
var ErrCorrupt = fmt.Errorf("block: corrupt encoding")

// Block is immutable once constructed by Builder.Build or Decode.
type Block struct {
	data    []byte
	offsets []uint16
}

// Data exposes the raw entry bytes; the sorted-run code serializes blocks
// through Encode and does not call it.
func (b *Block) Data() []byte { return b.data }

// Offsets exposes the per-entry offset table.
func (b *Block) Offsets() []uint16 { return b.offsets }

// NumEntries reports the number of entries held by the block.
func (b *Block) NumEntries() int { return len(b.offsets) }

// Encode serializes the block per the wire format documented above.
func (b *Block) Encode() []byte {
	buf := make([]byte, 0, len(b.data)+len(b.offsets)*2+2)
	buf = append(buf, b.data...)
	for _, off := range b.offsets {
		buf = binary.BigEndian.AppendUint16(buf, off)
	}
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(b.offsets)))
	return buf
}

// Decode parses a block previously produced by Encode.
func Decode(raw []byte) (*Block, error) {
	if len(raw) < 2 {
		return nil, fmt.Errorf("%w: block shorter than trailing count", ErrCorrupt)
	}

	n := binary.BigEndian.Uint16(raw[len(raw)-2:])
	offsetsSize := int(n) * 2
	trailerSize := offsetsSize + 2

	if len(raw) < trailerSize {
		return nil, fmt.Errorf("%w: offset table overruns block", ErrCorrupt)
	}

	dataEnd := len(raw) - trailerSize
	offsets := make([]uint16, n)
	offsetBytes := raw[dataEnd : dataEnd+offsetsSize]
	for i := range offsets {
		offsets[i] = binary.BigEndian.Uint16(offsetBytes[i*2:])
	}

	data := make([]byte, dataEnd)
	copy(data, raw[:dataEnd])

	blk := &Block{data: data, offsets: offsets}
	if err := blk.validate(); err != nil {
		return nil, err
	}
	return blk, nil
}

func (b *Block) validate() error {
	for i := 1; i < len(b.offsets); i++ {
		if b.offsets[i] <= b.offsets[i-1] {
			return fmt.Errorf("%w: offsets not strictly increasing at %d", ErrCorrupt, i)
		}
	}
	var prevKey []byte
	for i, off := range b.offsets {
		key, _, _, err := b.entryAt(off)
		if err != nil {
			return err
		}
		if i > 0 && string(key) < string(prevKey) {
			return fmt.Errorf("%w: entry %d out of order", ErrCorrupt, i)
		}
		prevKey = key
	}
	return nil
}

// entryAt decodes the entry starting at the given offset into data, returning
// the key, the value, and the byte length consumed.
func (b *Block) entryAt(offset uint16) (key, value []byte, consumed int, err error) {
	buf := b.data[offset:]
	if len(buf) < 2 {
		return nil, nil, 0, fmt.Errorf("%w: truncated key length", ErrCorrupt)
	}
	keyLen := binary.BigEndian.Uint16(buf)
	buf = buf[2:]
	if len(buf) < int(keyLen)+2 {
		return nil, nil, 0, fmt.Errorf("%w: truncated key", ErrCorrupt)
	}
	key = buf[:keyLen]
	buf = buf[keyLen:]

	valLen := binary.BigEndian.Uint16(buf)
	buf = buf[2:]
	if len(buf) < int(valLen) {
		return nil, nil, 0, fmt.Errorf("%w: truncated value", ErrCorrupt)
	}
	value = buf[:valLen]

	consumed = 2 + int(keyLen) + 2 + int(valLen)
	return key, value, consumed, nil
}

// KeyAt decodes only the key at the entry addressed by offsets[idx]; used by
// BlockIterator's binary search so it never materializes values it discards.
func (b *Block) KeyAt(idx int) ([]byte, error) {
	if idx < 0 || idx >= len(b.offsets) {
		return nil, fmt.Errorf("%w: index %d out of range", ErrCorrupt, idx)
	}
	key, _, _, err := b.entryAt(b.offsets[idx])
	return key, err
}

// EntryAt decodes the full (key, value) pair at the given entry index.
func (b *Block) EntryAt(idx int) (key, value []byte, err error) {
	if idx < 0 || idx >= len(b.offsets) {
		return nil, nil, fmt.Errorf("%w: index %d out of range", ErrCorrupt, idx)
	}
	key, value, _, err = b.entryAt(b.offsets[idx])
	return key, value, err
}
