package lsm

// CompactionOptions selects a compaction strategy. Only the zero value
// (no compaction beyond L0 append) is implemented at this tier; the type
// exists so Options has a place to grow into, per spec §6's enumerated
// option set.
type CompactionOptions struct {
	// Strategy names the compaction strategy; "" means none.
	Strategy string
}

// Options configures an Engine, mirroring spec §6's option set:
// block_size, target_sst_size, num_memtable_limit, compaction_options,
// enable_wal, serializable.
type Options struct {
	BlockSize          int
	TargetSSTSize      int
	NumMemtableLimit   int
	Compaction         CompactionOptions
	EnableWAL          bool
	Serializable       bool
	BlockCacheCapacity int
}

// Option is a functional option over Options, following the teacher's
// segmentmanager.Option idiom.
type Option func(*Options)

func defaultOptions() Options {
	return Options{
		BlockSize:          4096,
		TargetSSTSize:      2 << 20,
		NumMemtableLimit:   8,
		EnableWAL:          false,
		Serializable:       false,
		BlockCacheCapacity: 4096,
	}
}

// WithBlockSize overrides the target size of one block within an SST.
func WithBlockSize(n int) Option {
	return func(o *Options) { o.BlockSize = n }
}

// WithTargetSSTSize overrides the memtable-freeze size threshold.
func WithTargetSSTSize(n int) Option {
	return func(o *Options) { o.TargetSSTSize = n }
}

// WithNumMemtableLimit overrides how many immutable memtables may
// accumulate before callers are expected to force a flush.
func WithNumMemtableLimit(n int) Option {
	return func(o *Options) { o.NumMemtableLimit = n }
}

// WithCompaction sets the compaction strategy; unimplemented at this tier
// beyond recording the choice.
func WithCompaction(c CompactionOptions) Option {
	return func(o *Options) { o.Compaction = c }
}

// WithEnableWAL turns on write-ahead logging for each memtable.
func WithEnableWAL(enable bool) Option {
	return func(o *Options) { o.EnableWAL = enable }
}

// WithSerializable reserves serializable-transaction mode; recorded but not
// enforced at this tier.
func WithSerializable(serializable bool) Option {
	return func(o *Options) { o.Serializable = serializable }
}

// WithBlockCacheCapacity overrides the number of decoded blocks the block
// cache retains.
func WithBlockCacheCapacity(n int) Option {
	return func(o *Options) { o.BlockCacheCapacity = n }
}
