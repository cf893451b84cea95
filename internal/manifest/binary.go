package manifest

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/hupe1980/kosha/internal/conv"
	"github.com/hupe1980/kosha/internal/hash"
)

const (
	binaryMagic   = 0x4B4F5348 // "KOSH"
	binaryVersion = 1
	headerSize    = 16

	// maxPayload bounds the allocation for a declared payload length.
	maxPayload = 16 << 20
)

// WriteBinary writes the manifest in binary format.
func (m *Manifest) WriteBinary(w io.Writer) error {
	pb := newPayloadBuffer(make([]byte, 0, 96+len(m.Segments)*48))

	pb.writeUint64(m.ID)
	pb.writeUint64(uint64(m.CreatedAt.UnixNano()))
	pb.writeString(m.Codec)
	pb.writeUint32(m.CodecVersion)
	pb.writeString(m.Compression)
	pb.writeUint32(m.BlockSize)
	pb.writeUint32(m.RestartInterval)
	pb.writeUint64(m.NumKeys)
	pb.writeUint64(m.NumEntries)
	pb.writeUint32(uint32(len(m.Segments)))

	for _, s := range m.Segments {
		pb.writeUint8(uint8(s.Kind))
		pb.writeUint64(uint64(s.Size))
		pb.writeUint32(s.Checksum)
		pb.writeString(s.Path)
	}

	if pb.err != nil {
		return pb.err
	}

	payload := pb.buf
	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(header[0:4], binaryMagic)
	binary.LittleEndian.PutUint32(header[4:8], binaryVersion)
	binary.LittleEndian.PutUint32(header[8:12], hash.CRC32C(payload))
	binary.LittleEndian.PutUint32(header[12:16], uint32(len(payload)))

	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadBinary reads a manifest written by WriteBinary.
func ReadBinary(r io.Reader) (*Manifest, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrCorrupted, err)
	}

	if magic := binary.LittleEndian.Uint32(header[0:4]); magic != binaryMagic {
		return nil, fmt.Errorf("%w: invalid magic %x", ErrCorrupted, magic)
	}
	version := binary.LittleEndian.Uint32(header[4:8])
	if version != binaryVersion {
		return nil, fmt.Errorf("%w: %d", ErrIncompatibleVersion, version)
	}
	checksum := binary.LittleEndian.Uint32(header[8:12])
	length := binary.LittleEndian.Uint32(header[12:16])
	if length > maxPayload {
		return nil, fmt.Errorf("%w: payload of %d bytes", ErrCorrupted, length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrCorrupted, err)
	}
	if hash.CRC32C(payload) != checksum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupted)
	}

	pb := newPayloadBuffer(payload)
	m := &Manifest{Version: int(version)}

	m.ID = pb.readUint64()
	m.CreatedAt = time.Unix(0, int64(pb.readUint64()))
	m.Codec = pb.readString()
	m.CodecVersion = pb.readUint32()
	m.Compression = pb.readString()
	m.BlockSize = pb.readUint32()
	m.RestartInterval = pb.readUint32()
	m.NumKeys = pb.readUint64()
	m.NumEntries = pb.readUint64()

	n := pb.readUint32()
	// Each segment takes at least 15 bytes.
	if pb.err == nil && uint64(n)*15 > uint64(len(payload)-pb.pos) {
		return nil, fmt.Errorf("%w: %d segments", ErrCorrupted, n)
	}
	m.Segments = make([]SegmentInfo, n)
	for i := range m.Segments {
		s := &m.Segments[i]
		s.Kind = SegmentKind(pb.readUint8())
		s.Size = int64(pb.readUint64())
		s.Checksum = pb.readUint32()
		s.Path = pb.readString()
	}

	if pb.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, pb.err)
	}
	if pb.pos != len(payload) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorrupted, len(payload)-pb.pos)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// payloadBuffer encodes and decodes payload fields. The first error sticks.
type payloadBuffer struct {
	buf []byte
	pos int
	err error
}

func newPayloadBuffer(b []byte) *payloadBuffer {
	return &payloadBuffer{buf: b}
}

func (p *payloadBuffer) writeUint8(v uint8) {
	if p.err != nil {
		return
	}
	p.buf = append(p.buf, v)
}

func (p *payloadBuffer) writeUint64(v uint64) {
	if p.err != nil {
		return
	}
	p.buf = binary.LittleEndian.AppendUint64(p.buf, v)
}

func (p *payloadBuffer) writeUint32(v uint32) {
	if p.err != nil {
		return
	}
	p.buf = binary.LittleEndian.AppendUint32(p.buf, v)
}

func (p *payloadBuffer) writeString(s string) {
	if p.err != nil {
		return
	}
	n, err := conv.Uint16(len(s))
	if err != nil {
		p.err = fmt.Errorf("string too long: %w", err)
		return
	}
	p.buf = binary.LittleEndian.AppendUint16(p.buf, n)
	p.buf = append(p.buf, s...)
}

func (p *payloadBuffer) need(n int) bool {
	if p.err != nil {
		return false
	}
	if p.pos+n > len(p.buf) {
		p.err = io.ErrUnexpectedEOF
		return false
	}
	return true
}

func (p *payloadBuffer) readUint8() uint8 {
	if !p.need(1) {
		return 0
	}
	v := p.buf[p.pos]
	p.pos++
	return v
}

func (p *payloadBuffer) readUint64() uint64 {
	if !p.need(8) {
		return 0
	}
	v := binary.LittleEndian.Uint64(p.buf[p.pos:])
	p.pos += 8
	return v
}

func (p *payloadBuffer) readUint32() uint32 {
	if !p.need(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(p.buf[p.pos:])
	p.pos += 4
	return v
}

func (p *payloadBuffer) readString() string {
	if !p.need(2) {
		return ""
	}
	l := int(binary.LittleEndian.Uint16(p.buf[p.pos:]))
	p.pos += 2
	if !p.need(l) {
		return ""
	}
	s := string(p.buf[p.pos : p.pos+l])
	p.pos += l
	return s
}
