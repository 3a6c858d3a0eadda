package sst

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/bits-and-blooms/bloom/v3"
)

// bloomFalsePositiveRate matches the teacher's SST bloom filter tuning.
const bloomFalsePositiveRate = 0.01

// bloomEstimatedKeys seeds the filter's bit array sizing; Add still works
// past this estimate, only the false-positive rate degrades gracefully.
const bloomEstimatedKeys = 4096

func encodeBloom(filter *bloom.BloomFilter) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, uint32(filter.K())); err != nil {
		return nil, fmt.Errorf("sst: write bloom hash count: %w", err)
	}
	if err := binary.Write(&buf, binary.BigEndian, uint32(filter.Cap())); err != nil {
		return nil, fmt.Errorf("sst: write bloom bit count: %w", err)
	}
	if _, err := filter.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("sst: write bloom bits: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeBloom(raw []byte) (*bloom.BloomFilter, error) {
	if len(raw) < 8 {
		return nil, fmt.Errorf("%w: bloom region shorter than header", ErrCorrupt)
	}
	r := bytes.NewReader(raw[8:])
	filter := &bloom.BloomFilter{}
	if _, err := filter.ReadFrom(io.Reader(r)); err != nil {
		return nil, fmt.Errorf("%w: bloom bits: %v", ErrCorrupt, err)
	}
	return filter, nil
}
