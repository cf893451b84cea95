package kosha

import (
	"log/slog"

	"github.com/hupe1980/kosha/codec"
	"github.com/hupe1980/kosha/internal/entryblob"
	"github.com/hupe1980/kosha/internal/keyindex"
)

// Compression selects how entry blob blocks are stored.
type Compression = entryblob.Compression

const (
	CompressionNone = entryblob.CompressionNone
	CompressionLZ4  = entryblob.CompressionLZ4
	CompressionZSTD = entryblob.CompressionZSTD
)

// ParseCompression parses "none", "lz4" or "zstd".
func ParseCompression(s string) (Compression, error) {
	return entryblob.ParseCompression(s)
}

const (
	// DefaultBlockSize is the uncompressed size of an entry blob block.
	DefaultBlockSize = entryblob.DefaultBlockSize

	// DefaultBlockCacheSize is the capacity of the decompressed block cache.
	DefaultBlockCacheSize = 32 << 20

	// DefaultBloomFalsePositiveRate is the target false positive rate of the
	// key bloom filter.
	DefaultBloomFalsePositiveRate = 0.01
)

type options struct {
	codec           codec.Codec
	codecSet        bool
	compression     Compression
	blockSize       int
	restartInterval int
	bloomFPR        float64

	memoryLimit int64
	ioLimit     int64
	workers     int

	blockCacheSize int64

	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures Builder and Open behavior.
//
// Build-time options (codec, compression, block size, restart interval,
// limits) are ignored by Open, which reads them from the manifest.
type Option func(*options)

// WithCodec configures the entry codec used by a Builder.
//
// If nil is passed, codec.Default is used. Open resolves the codec from the
// manifest; a codec passed to Open must match it.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
		o.codecSet = true
	}
}

// WithCompression configures block compression of the entry blob.
//
// CompressionNone keeps the blob as one contiguous stream, which local stores
// read without copying.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithBlockSize configures the uncompressed entry blob block size.
func WithBlockSize(n int) Option {
	return func(o *options) {
		o.blockSize = n
	}
}

// WithRestartInterval configures how many keys share one restart point in
// the key index. Larger values shrink the index and lengthen lookups.
func WithRestartInterval(n int) Option {
	return func(o *options) {
		o.restartInterval = n
	}
}

// WithBloomFalsePositiveRate configures the key bloom filter.
func WithBloomFalsePositiveRate(p float64) Option {
	return func(o *options) {
		o.bloomFPR = p
	}
}

// WithMemoryLimit caps the bytes of encoded records a Builder buffers.
// Insert fails with ErrMemoryLimitExceeded once the limit is reached.
// 0 disables the limit.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithIOLimit throttles segment writes to bytesPerSec. 0 disables throttling.
func WithIOLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.ioLimit = bytesPerSec
	}
}

// WithWorkers configures how many segments Finish writes concurrently.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithBlockCacheSize configures the decompressed block cache of a Kosha in
// bytes. 0 disables the cache.
func WithBlockCacheSize(bytes int64) Option {
	return func(o *options) {
		o.blockCacheSize = bytes
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &kosha.BasicMetricsCollector{}
//	k, _ := kosha.Open(ctx, dir, kosha.WithMetricsCollector(metrics))
//	// ... use k ...
//	stats := metrics.GetStats()
//	fmt.Printf("Lookups: %d, Avg latency: %dns\n", stats.LookupCount, stats.LookupAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := kosha.NewJSONLogger(slog.LevelInfo)
//	b, _ := kosha.NewBuilder(dir, kosha.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		codec:            codec.Default,
		compression:      CompressionNone,
		blockSize:        DefaultBlockSize,
		restartInterval:  keyindex.DefaultRestartInterval,
		bloomFPR:         DefaultBloomFalsePositiveRate,
		workers:          4,
		blockCacheSize:   DefaultBlockCacheSize,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}
