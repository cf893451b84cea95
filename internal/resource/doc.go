// Package resource bounds what a build may consume.
//
// A Controller tracks three budgets:
//
//   - Memory: buffered record bytes. AcquireMemory is non-blocking and fails
//     fast with ErrMemoryLimitExceeded.
//   - Workers: concurrent segment writers, a weighted semaphore.
//   - IO: a token bucket on written bytes. NewRateLimitedWriter applies it to
//     any io.Writer.
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes:   1 << 30,
//	    MaxWorkers:         4,
//	    IOLimitBytesPerSec: 100 << 20,
//	})
//
// All methods handle a nil Controller gracefully; they become no-ops.
package resource
