package manifest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/kosha/blobstore"
)

const (
	ManifestFileName = "MANIFEST"
	CurrentFileName  = "CURRENT"
	// CurrentVersion is the version of the manifest format.
	CurrentVersion = 1
)

// SegmentKind identifies the role of a segment file.
type SegmentKind uint8

const (
	SegmentKeys    SegmentKind = iota + 1 // key index
	SegmentEntries                        // entry blob
	SegmentBloom                          // bloom filter over keys
	SegmentKinds                          // per entry kind bitmaps
)

// AllSegmentKinds lists every kind a complete manifest carries.
var AllSegmentKinds = []SegmentKind{SegmentKeys, SegmentEntries, SegmentBloom, SegmentKinds}

var segmentFiles = map[SegmentKind][2]string{
	SegmentKeys:    {"keys", "idx"},
	SegmentEntries: {"entries", "blob"},
	SegmentBloom:   {"bloom", "bf"},
	SegmentKinds:   {"kinds", "rb"},
}

func (k SegmentKind) String() string {
	if f, ok := segmentFiles[k]; ok {
		return f[0]
	}
	return fmt.Sprintf("SegmentKind(%d)", uint8(k))
}

// SegmentName returns the file name of a segment of generation id,
// e.g. "keys-000001.idx".
func SegmentName(kind SegmentKind, id uint64) string {
	f := segmentFiles[kind]
	return fmt.Sprintf("%s-%06d.%s", f[0], id, f[1])
}

// FileName returns the manifest file name of generation id.
func FileName(id uint64) string {
	return fmt.Sprintf("%s-%06d.bin", ManifestFileName, id)
}

// Generation extracts the generation from a manifest or segment file name.
func Generation(name string) (uint64, bool) {
	stem, ext, ok := strings.Cut(name, ".")
	if !ok {
		return 0, false
	}
	prefix, num, ok := strings.Cut(stem, "-")
	if !ok {
		return 0, false
	}
	valid := prefix == ManifestFileName && ext == "bin"
	for _, f := range segmentFiles {
		valid = valid || (prefix == f[0] && ext == f[1])
	}
	if !valid {
		return 0, false
	}
	id, err := strconv.ParseUint(num, 10, 64)
	return id, err == nil
}

// Manifest describes one committed generation of a store.
type Manifest struct {
	Version   int
	ID        uint64 // generation, starting at 1
	CreatedAt time.Time

	Codec        string
	CodecVersion uint32

	Compression     string
	BlockSize       uint32
	RestartInterval uint32

	NumKeys    uint64
	NumEntries uint64

	Segments []SegmentInfo
}

// SegmentInfo describes a single segment file.
type SegmentInfo struct {
	Kind     SegmentKind
	Path     string // relative to the store root
	Size     int64
	Checksum uint32 // CRC32C of the whole file
}

// Segment returns the segment of the given kind.
func (m *Manifest) Segment(kind SegmentKind) (SegmentInfo, bool) {
	for _, s := range m.Segments {
		if s.Kind == kind {
			return s, true
		}
	}
	return SegmentInfo{}, false
}

// Validate checks that every segment kind is present exactly once.
func (m *Manifest) Validate() error {
	seen := make(map[SegmentKind]bool, len(m.Segments))
	for _, s := range m.Segments {
		if _, ok := segmentFiles[s.Kind]; !ok {
			return fmt.Errorf("%w: unknown segment kind %d", ErrCorrupted, s.Kind)
		}
		if seen[s.Kind] {
			return fmt.Errorf("%w: duplicate %s segment", ErrCorrupted, s.Kind)
		}
		if s.Path == "" || s.Size < 0 {
			return fmt.Errorf("%w: bad %s segment", ErrCorrupted, s.Kind)
		}
		seen[s.Kind] = true
	}
	for _, k := range AllSegmentKinds {
		if !seen[k] {
			return fmt.Errorf("%w: missing %s segment", ErrCorrupted, k)
		}
	}
	return nil
}

// Store manages manifest files and the CURRENT marker of a blob store.
type Store struct {
	store blobstore.BlobStore
	mu    sync.Mutex
}

// NewStore creates a new manifest store.
func NewStore(store blobstore.BlobStore) *Store {
	return &Store{store: store}
}

// Load loads the manifest named by CURRENT.
//
// A missing CURRENT yields an error matching both ErrNotFound and fs.ErrNotExist.
func (s *Store) Load(ctx context.Context) (*Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, FileName(id))
}

// CurrentID returns the generation CURRENT names without loading its manifest.
func (s *Store) CurrentID(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current(ctx)
}

func (s *Store) current(ctx context.Context) (uint64, error) {
	content, err := blobstore.ReadFile(ctx, s.store, CurrentFileName)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return 0, fmt.Errorf("read %s: %w", CurrentFileName, err)
	}

	name := strings.TrimSpace(string(content))
	id, ok := Generation(name)
	if !ok || !strings.HasPrefix(name, ManifestFileName) || name != FileName(id) {
		return 0, fmt.Errorf("%w: %s names %q", ErrCorrupted, CurrentFileName, name)
	}
	return id, nil
}

// LoadVersion loads the manifest of generation id, committed or not.
func (s *Store) LoadVersion(ctx context.Context, id uint64) (*Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx, FileName(id))
}

func (s *Store) load(ctx context.Context, name string) (*Manifest, error) {
	data, err := blobstore.ReadFile(ctx, s.store, name)
	if err != nil {
		// A CURRENT naming a missing manifest is corruption, not absence.
		return nil, fmt.Errorf("%w: open %s: %v", ErrCorrupted, name, err)
	}
	m, err := ReadBinary(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if want, _ := Generation(name); m.ID != want {
		return nil, fmt.Errorf("%w: %s holds generation %d", ErrCorrupted, name, m.ID)
	}
	return m, nil
}

// ListVersions returns the generations of all manifest files, ascending.
func (s *Store) ListVersions(ctx context.Context) ([]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.store.List(ctx, ManifestFileName+"-")
	if err != nil {
		return nil, err
	}
	var ids []uint64
	for _, name := range names {
		if id, ok := Generation(name); ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// NextID returns a generation above every generation with files in the store,
// committed or not.
func (s *Store) NextID(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.store.List(ctx, "")
	if err != nil {
		return 0, err
	}
	var maxID uint64
	for _, name := range names {
		if id, ok := Generation(name); ok {
			maxID = max(maxID, id)
		}
	}
	return maxID + 1, nil
}

// WriteManifest writes the manifest file of m without committing it.
func (s *Store) WriteManifest(ctx context.Context, m *Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.Version = CurrentVersion
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	var buf bytes.Buffer
	if err := m.WriteBinary(&buf); err != nil {
		return err
	}
	return s.store.Put(ctx, FileName(m.ID), buf.Bytes())
}

// Commit points CURRENT at the manifest of generation id.
func (s *Store) Commit(ctx context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Put(ctx, CurrentFileName, []byte(FileName(id)))
}

// Save writes the manifest and commits it.
func (s *Store) Save(ctx context.Context, m *Manifest) error {
	if err := s.WriteManifest(ctx, m); err != nil {
		return err
	}
	return s.Commit(ctx, m.ID)
}

// DeleteVersion deletes the manifest file of generation id.
func (s *Store) DeleteVersion(ctx context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Delete(ctx, FileName(id))
}
