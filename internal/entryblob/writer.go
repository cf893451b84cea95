package entryblob

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/kosha/internal/hash"
)

const (
	// DefaultBlockSize is the logical size of a compressed block.
	DefaultBlockSize = 64 * 1024

	formatVersion = 1
	magic         = 0x4B454E54 // "KENT"
	trailerSize   = 36
	tableEntry    = 16
)

var order = binary.LittleEndian

var (
	// ErrCorrupted indicates a blob or frame that fails validation.
	ErrCorrupted = errors.New("entryblob: corrupted blob")
	// ErrClosed is returned by a Writer after Close.
	ErrClosed = errors.New("entryblob: writer closed")
)

type blockInfo struct {
	offset uint64
	stored uint32
	crc    uint32
}

// Writer streams frames into a blob.
type Writer struct {
	w           io.Writer
	compression Compression
	blockSize   int

	logical  uint64 // bytes of frames appended
	physical uint64 // bytes written to w

	pending []byte // current block, compressed modes only
	scratch []byte
	blocks  []blockInfo
	closed  bool
}

// NewWriter returns a Writer over w. A non-positive blockSize selects
// DefaultBlockSize.
func NewWriter(w io.Writer, c Compression, blockSize int) (*Writer, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("entryblob: invalid compression %d", c)
	}
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	bw := &Writer{w: w, compression: c, blockSize: blockSize}
	if c != CompressionNone {
		bw.pending = make([]byte, 0, blockSize)
	}
	return bw, nil
}

// Offset returns the logical offset the next frame is written at.
func (w *Writer) Offset() uint64 { return w.logical }

// AppendFrame writes record as one frame.
func (w *Writer) AppendFrame(record []byte) error {
	if w.closed {
		return ErrClosed
	}
	var hdr [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(hdr[:], uint64(len(record)))
	if err := w.write(hdr[:n]); err != nil {
		return err
	}
	return w.write(record)
}

func (w *Writer) write(p []byte) error {
	w.logical += uint64(len(p))
	if w.compression == CompressionNone {
		return w.emit(p)
	}
	for len(p) > 0 {
		n := min(len(p), w.blockSize-len(w.pending))
		w.pending = append(w.pending, p[:n]...)
		p = p[n:]
		if len(w.pending) == w.blockSize {
			if err := w.flushBlock(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *Writer) flushBlock() error {
	if len(w.pending) == 0 {
		return nil
	}
	var err error
	w.scratch, err = compressBlock(w.scratch[:0], w.pending, w.compression)
	if err != nil {
		return fmt.Errorf("entryblob: compress block %d: %w", len(w.blocks), err)
	}
	w.blocks = append(w.blocks, blockInfo{
		offset: w.physical,
		stored: uint32(len(w.scratch)),
		crc:    hash.CRC32C(w.scratch),
	})
	w.pending = w.pending[:0]
	return w.emit(w.scratch)
}

func (w *Writer) emit(p []byte) error {
	n, err := w.w.Write(p)
	w.physical += uint64(n)
	return err
}

// Close flushes the last block and writes the block table and trailer. It does
// not close the underlying writer.
func (w *Writer) Close() error {
	if w.closed {
		return ErrClosed
	}
	w.closed = true
	if err := w.flushBlock(); err != nil {
		return err
	}

	tail := make([]byte, 0, len(w.blocks)*tableEntry+trailerSize)
	for _, b := range w.blocks {
		tail = order.AppendUint64(tail, b.offset)
		tail = order.AppendUint32(tail, b.stored)
		tail = order.AppendUint32(tail, b.crc)
	}
	tail = order.AppendUint64(tail, w.logical)
	tail = order.AppendUint64(tail, w.physical)
	tail = order.AppendUint32(tail, uint32(len(w.blocks)))
	tail = order.AppendUint32(tail, uint32(w.blockSize))
	tail = append(tail, uint8(w.compression), formatVersion, 0, 0)
	tail = order.AppendUint32(tail, hash.CRC32C(tail))
	tail = order.AppendUint32(tail, magic)
	return w.emit(tail)
}

// Size returns the number of bytes written to the underlying writer.
func (w *Writer) Size() uint64 { return w.physical }

// FrameSize returns the logical size of a frame holding a record of n bytes.
func FrameSize(n int) uint64 {
	var hdr [binary.MaxVarintLen64]byte
	return uint64(binary.PutUvarint(hdr[:], uint64(n)) + n)
}
