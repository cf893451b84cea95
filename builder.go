package kosha

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/kosha/blobstore"
	"github.com/hupe1980/kosha/entry"
	"github.com/hupe1980/kosha/internal/bloom"
	"github.com/hupe1980/kosha/internal/entryblob"
	"github.com/hupe1980/kosha/internal/conv"
	"github.com/hupe1980/kosha/internal/hash"
	"github.com/hupe1980/kosha/internal/keyindex"
	"github.com/hupe1980/kosha/internal/kindindex"
	"github.com/hupe1980/kosha/internal/manifest"
	"github.com/hupe1980/kosha/internal/resource"
)

// recordOverhead approximates the per-record bookkeeping charged against the
// memory limit in addition to key and record bytes.
const recordOverhead = 48

const segmentBufferSize = 256 << 10

type record struct {
	key  string
	kind entry.Kind
	data []byte
}

// Builder accumulates (key, entry) pairs and writes them as an immutable store.
//
// A Builder is single-use: after Finish, successful or not, it is spent and
// every further Insert or Finish returns ErrAlreadyFinished. It is not safe
// for concurrent use.
type Builder struct {
	store    blobstore.BlobStore
	location string
	opts     options
	rc       *resource.Controller

	records  []record
	memory   int64
	finished bool
}

// NewBuilder returns a Builder writing to the directory location. The
// directory is created by Finish if it does not exist.
func NewBuilder(location string, opts ...Option) (*Builder, error) {
	if location == "" {
		return nil, &IOError{Op: "create", Err: errors.New("empty location")}
	}
	b, err := NewBuilderWithStore(blobstore.NewLocalStore(location), opts...)
	if err != nil {
		return nil, err
	}
	b.location = location
	return b, nil
}

// NewBuilderWithStore returns a Builder writing to store.
func NewBuilderWithStore(store blobstore.BlobStore, opts ...Option) (*Builder, error) {
	o := applyOptions(opts)
	if !o.compression.Valid() {
		return nil, fmt.Errorf("invalid compression %d", o.compression)
	}
	if o.blockSize <= 0 || o.blockSize > 1<<30 {
		return nil, fmt.Errorf("invalid block size %d", o.blockSize)
	}
	if o.restartInterval <= 0 {
		return nil, fmt.Errorf("invalid restart interval %d", o.restartInterval)
	}

	return &Builder{
		store:    store,
		location: "store",
		opts:     o,
		rc: resource.NewController(resource.Config{
			MemoryLimitBytes:   o.memoryLimit,
			MaxWorkers:         int64(max(o.workers, 1)),
			IOLimitBytesPerSec: o.ioLimit,
		}),
	}, nil
}

// Insert buffers e under key. Keys may arrive in any order and repeat; the
// entries of a key keep their insertion order.
//
// The entry is encoded immediately, so an entry the codec rejects fails here
// with ErrInvalidEntry rather than in Finish.
func (b *Builder) Insert(key string, e entry.Entry) error {
	err := b.insert(key, e)
	b.opts.metricsCollector.RecordInsert(err)
	if err != nil && !errors.Is(err, ErrAlreadyFinished) {
		b.opts.logger.LogInsertRejected(context.Background(), key, err)
	}
	return err
}

func (b *Builder) insert(key string, e entry.Entry) error {
	if b.finished {
		return ErrAlreadyFinished
	}
	if err := validateKey(key); err != nil {
		return err
	}
	if e == nil {
		return fmt.Errorf("%w: nil entry", ErrInvalidEntry)
	}

	data, err := b.opts.codec.Append(nil, e)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEntry, err)
	}

	size := int64(len(key)+len(data)) + recordOverhead
	if err := b.rc.AcquireMemory(size); err != nil {
		return fmt.Errorf("%w: %d of %d bytes buffered", ErrMemoryLimitExceeded, b.rc.MemoryUsage(), b.rc.MemoryLimit())
	}
	b.memory += size

	b.records = append(b.records, record{key: key, kind: e.Kind(), data: data})
	return nil
}

func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	if strings.IndexByte(key, 0) >= 0 {
		return fmt.Errorf("%w: %q contains NUL", ErrInvalidKey, key)
	}
	return nil
}

// Len returns the number of buffered entries.
func (b *Builder) Len() int {
	return len(b.records)
}

type finishStats struct {
	keys    int
	entries int
	bytes   int64
}

// Finish sorts the buffered entries by key and writes the store.
//
// Segments are written first, then the manifest, then the CURRENT marker. A
// store is only visible to Open once CURRENT names its manifest, so a failed
// Finish never leaves an openable partial store. Storage failures match
// ErrIOFailure. The files of older generations are removed after the commit.
func (b *Builder) Finish(ctx context.Context) error {
	if b.finished {
		return ErrAlreadyFinished
	}
	b.finished = true

	start := time.Now()
	st, err := b.finish(ctx)

	b.records = nil
	b.rc.ReleaseMemory(b.memory)
	b.memory = 0

	b.opts.metricsCollector.RecordFinish(st.keys, st.entries, st.bytes, time.Since(start), err)
	b.opts.logger.WithLocation(b.location).LogFinish(ctx, st.keys, st.entries, time.Since(start), err)
	return err
}

func (b *Builder) finish(ctx context.Context) (finishStats, error) {
	recs := b.records
	st := finishStats{entries: len(recs)}

	// Stable: entries of one key stay in insertion order.
	slices.SortStableFunc(recs, func(x, y record) int {
		return strings.Compare(x.key, y.key)
	})

	distinct := 0
	for i := range recs {
		if i == 0 || recs[i].key != recs[i-1].key {
			distinct++
		}
	}
	st.keys = distinct

	kw := keyindex.NewWriter(b.opts.restartInterval)
	bf := bloom.NewForSize(distinct, b.opts.bloomFPR)
	kb := kindindex.NewBuilder()

	var logical uint64
	for i := 0; i < len(recs); {
		ord := uint32(kw.Len())
		p := keyindex.Posting{Offset: logical}
		j := i
		for ; j < len(recs) && recs[j].key == recs[i].key; j++ {
			p.Length += entryblob.FrameSize(len(recs[j].data))
			kb.Add(ord, recs[j].kind)
		}
		count, err := conv.Uint32(j - i)
		if err != nil {
			return st, fmt.Errorf("key %q: %w", recs[i].key, err)
		}
		p.Count = count
		if err := kw.Add([]byte(recs[i].key), p); err != nil {
			return st, err
		}
		bf.AddString(recs[i].key)
		logical += p.Length
		i = j
	}

	keysData := kw.Finish()
	bloomData, err := bf.MarshalBinary()
	if err != nil {
		return st, err
	}
	kindsData, err := kb.MarshalBinary()
	if err != nil {
		return st, err
	}

	ms := manifest.NewStore(b.store)
	id, err := ms.NextID(ctx)
	if err != nil {
		return st, ioError("list", "", err)
	}
	log := b.opts.logger.WithLocation(b.location).WithGeneration(id)

	writeBlob := func(w io.Writer) error {
		bw, err := entryblob.NewWriter(w, b.opts.compression, b.opts.blockSize)
		if err != nil {
			return err
		}
		for _, r := range recs {
			if err := bw.AppendFrame(r.data); err != nil {
				return err
			}
		}
		if bw.Offset() != logical {
			return fmt.Errorf("entry blob holds %d bytes, index expects %d", bw.Offset(), logical)
		}
		return bw.Close()
	}

	segments := []struct {
		kind  manifest.SegmentKind
		write func(io.Writer) error
	}{
		{manifest.SegmentEntries, writeBlob},
		{manifest.SegmentKeys, writeBytes(keysData)},
		{manifest.SegmentBloom, writeBytes(bloomData)},
		{manifest.SegmentKinds, writeBytes(kindsData)},
	}

	infos := make([]manifest.SegmentInfo, len(segments))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range segments {
		g.Go(func() error {
			if err := b.rc.AcquireWorker(gctx); err != nil {
				return ioError("write", manifest.SegmentName(s.kind, id), err)
			}
			defer b.rc.ReleaseWorker()

			info, err := b.writeSegment(gctx, s.kind, id, s.write)
			infos[i] = info
			return err
		})
	}
	if err := g.Wait(); err != nil {
		b.removeGeneration(ctx, log, id)
		return st, err
	}

	m := &manifest.Manifest{
		ID:              id,
		Codec:           b.opts.codec.Name(),
		CodecVersion:    b.opts.codec.Version(),
		Compression:     b.opts.compression.String(),
		BlockSize:       uint32(b.opts.blockSize),
		RestartInterval: uint32(b.opts.restartInterval),
		NumKeys:         uint64(distinct),
		NumEntries:      uint64(len(recs)),
		Segments:        infos,
	}
	for _, s := range infos {
		st.bytes += s.Size
	}

	if err := ms.WriteManifest(ctx, m); err != nil {
		b.removeGeneration(ctx, log, id)
		return st, ioError("write", manifest.FileName(id), err)
	}
	if err := ms.Commit(ctx, id); err != nil {
		b.abandonGeneration(ctx, log, ms, id, err)
		return st, ioError("commit", manifest.CurrentFileName, err)
	}

	b.removeOlderGenerations(ctx, log, id)
	return st, nil
}

func writeBytes(data []byte) func(io.Writer) error {
	return func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	}
}

// writeSegment streams one segment into the store and returns its manifest
// entry. On failure the partially written blob is aborted.
func (b *Builder) writeSegment(ctx context.Context, kind manifest.SegmentKind, id uint64, write func(io.Writer) error) (manifest.SegmentInfo, error) {
	name := manifest.SegmentName(kind, id)

	wb, err := b.store.Create(ctx, name)
	if err != nil {
		return manifest.SegmentInfo{}, ioError("create", name, err)
	}

	crc := hash.NewCRC32C()
	cw := &countingWriter{w: io.MultiWriter(crc, resource.NewRateLimitedWriter(ctx, wb, b.rc))}
	bw := bufio.NewWriterSize(cw, segmentBufferSize)

	err = write(bw)
	if err == nil {
		err = bw.Flush()
	}
	if err != nil {
		_ = wb.Abort()
		return manifest.SegmentInfo{}, ioError("write", name, err)
	}
	if err := wb.Close(); err != nil {
		_ = wb.Abort()
		return manifest.SegmentInfo{}, ioError("commit", name, err)
	}

	return manifest.SegmentInfo{
		Kind:     kind,
		Path:     name,
		Size:     cw.n,
		Checksum: crc.Sum32(),
	}, nil
}

// removeGeneration deletes every file of generation id. Best effort.
func (b *Builder) removeGeneration(ctx context.Context, log *Logger, id uint64) {
	ctx = context.WithoutCancel(ctx)
	names := []string{manifest.FileName(id)}
	for _, k := range manifest.AllSegmentKinds {
		names = append(names, manifest.SegmentName(k, id))
	}
	for _, name := range names {
		if err := b.store.Delete(ctx, name); err != nil {
			log.LogCleanup(ctx, name, err)
		}
	}
}

// abandonGeneration cleans up after a failed commit of generation id. The
// write of CURRENT may have landed even though it reported an error, so the
// files of id are removed only when CURRENT provably names something else.
// Older generations are always kept.
func (b *Builder) abandonGeneration(ctx context.Context, log *Logger, ms *manifest.Store, id uint64, commitErr error) {
	cur, err := ms.CurrentID(context.WithoutCancel(ctx))
	switch {
	case err == nil && cur == id:
		log.WarnContext(ctx, "commit reported an error but CURRENT names the new generation; keeping its files",
			"generation", id,
			"error", commitErr,
		)
	case err == nil || errors.Is(err, manifest.ErrNotFound):
		b.removeGeneration(ctx, log, id)
	default:
		log.WarnContext(ctx, "cannot read CURRENT after failed commit; keeping generation files",
			"generation", id,
			"error", err,
		)
	}
}

// removeOlderGenerations deletes the files of every generation below id.
// Local readers that still map them keep working. Best effort.
func (b *Builder) removeOlderGenerations(ctx context.Context, log *Logger, id uint64) {
	names, err := b.store.List(ctx, "")
	if err != nil {
		log.LogCleanup(ctx, "", err)
		return
	}
	for _, name := range names {
		gen, ok := manifest.Generation(name)
		if !ok || gen >= id {
			continue
		}
		err := b.store.Delete(ctx, name)
		log.LogCleanup(ctx, name, err)
	}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
