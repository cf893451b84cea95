// Package fs provides filesystem abstractions for testability and fault injection.
//
//   - [File]: an open file with read/write/sync capabilities
//   - [FileSystem]: open, remove, rename, stat, mkdir, readdir, directory sync
//
// Production code uses fs.Default ([LocalFS]). Tests wrap it in a [FaultyFS]
// to simulate failures:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("entries-", fs.Fault{FailAfterBytes: 1024})
//	store := blobstore.NewLocalStore(dir, blobstore.WithFileSystem(ffs))
//
// This package does not take context.Context parameters. Local filesystem
// calls are not interruptible at the syscall level; slow backends go through
// blobstore, which does.
package fs
