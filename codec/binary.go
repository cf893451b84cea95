package codec

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hupe1980/kosha/entry"
)

const binaryVersion = 1

// Variant tags. Nested pratipadika variants carry their own tag inline.
const (
	tagTinanta uint8 = 1
	tagSubanta uint8 = 2

	tagBasic   uint8 = 1
	tagKrdanta uint8 = 2
)

// Binary is the compact record codec and the default.
//
// Record layout:
//
//	version u8
//	tag     u8 (1 = tinanta, 2 = subanta)
//	payload
//
// Strings are uvarint-length-prefixed. Enumerations are single bytes.
type Binary struct{}

// Name returns "binary".
func (Binary) Name() string { return "binary" }

// Version returns the record format version.
func (Binary) Version() uint32 { return binaryVersion }

// Append encodes e and appends it to dst.
func (Binary) Append(dst []byte, e entry.Entry) ([]byte, error) {
	if err := entry.Validate(e); err != nil {
		return dst, err
	}

	dst = append(dst, binaryVersion)
	switch v := e.(type) {
	case entry.Tinanta:
		dst = append(dst, tagTinanta)
		dst = appendDhatu(dst, v.Dhatu)
		dst = append(dst, uint8(v.Prayoga), uint8(v.Lakara), uint8(v.Purusha), uint8(v.Vacana))
	case entry.Subanta:
		dst = append(dst, tagSubanta)
		switch p := v.Pratipadika.(type) {
		case entry.Basic:
			dst = append(dst, tagBasic)
			dst = appendString(dst, p.Text)
			dst = append(dst, uint8(p.Lingas))
		case entry.Krdanta:
			dst = append(dst, tagKrdanta)
			dst = appendDhatu(dst, p.Dhatu)
			dst = append(dst, uint8(p.Krt))
		default:
			return dst, fmt.Errorf("%w: pratipadika %T", entry.ErrInvalidValue, v.Pratipadika)
		}
		dst = append(dst, uint8(v.Linga), uint8(v.Vibhakti), uint8(v.Vacana))
	default:
		return dst, fmt.Errorf("%w: entry %T", entry.ErrInvalidValue, e)
	}
	return dst, nil
}

// Decode parses one record produced by Append.
func (Binary) Decode(data []byte) (entry.Entry, error) {
	r := recordReader{buf: data}

	if v := r.readByte(); r.err == nil && v != binaryVersion {
		return nil, fmt.Errorf("%w: unknown version %d", ErrCorruptRecord, v)
	}

	var e entry.Entry
	switch tag := r.readByte(); {
	case r.err != nil:
	case tag == tagTinanta:
		t := entry.Tinanta{Dhatu: r.readDhatu()}
		t.Prayoga = entry.Prayoga(r.readByte())
		t.Lakara = entry.Lakara(r.readByte())
		t.Purusha = entry.Purusha(r.readByte())
		t.Vacana = entry.Vacana(r.readByte())
		e = t
	case tag == tagSubanta:
		s := entry.Subanta{}
		switch ptag := r.readByte(); {
		case r.err != nil:
		case ptag == tagBasic:
			b := entry.Basic{Text: r.readString()}
			b.Lingas = entry.LingaSet(r.readByte())
			s.Pratipadika = b
		case ptag == tagKrdanta:
			k := entry.Krdanta{Dhatu: r.readDhatu()}
			k.Krt = entry.Krt(r.readByte())
			s.Pratipadika = k
		default:
			return nil, fmt.Errorf("%w: unknown pratipadika tag %d", ErrCorruptRecord, ptag)
		}
		s.Linga = entry.Linga(r.readByte())
		s.Vibhakti = entry.Vibhakti(r.readByte())
		s.Vacana = entry.Vacana(r.readByte())
		e = s
	default:
		return nil, fmt.Errorf("%w: unknown tag %d", ErrCorruptRecord, tag)
	}

	if r.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, r.err)
	}
	if r.pos != len(r.buf) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorruptRecord, len(r.buf)-r.pos)
	}
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return e, nil
}

func appendString(dst []byte, s string) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(s)))
	return append(dst, s...)
}

func appendDhatu(dst []byte, d entry.DhatuEntry) []byte {
	dst = appendString(dst, d.Dhatu.Aupadeshika)
	dst = append(dst, uint8(d.Dhatu.Gana))
	return appendString(dst, d.CleanText)
}

// recordReader is a cursor over one record. The first failure sticks.
type recordReader struct {
	buf []byte
	pos int
	err error
}

func (r *recordReader) readByte() uint8 {
	if r.err != nil {
		return 0
	}
	if r.pos >= len(r.buf) {
		r.err = io.ErrUnexpectedEOF
		return 0
	}
	b := r.buf[r.pos]
	r.pos++
	return b
}

func (r *recordReader) readString() string {
	if r.err != nil {
		return ""
	}
	n, w := binary.Uvarint(r.buf[r.pos:])
	if w <= 0 {
		r.err = io.ErrUnexpectedEOF
		return ""
	}
	r.pos += w
	if n > uint64(len(r.buf)-r.pos) {
		r.err = io.ErrUnexpectedEOF
		return ""
	}
	s := string(r.buf[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s
}

func (r *recordReader) readDhatu() entry.DhatuEntry {
	var d entry.DhatuEntry
	d.Dhatu.Aupadeshika = r.readString()
	d.Dhatu.Gana = entry.Gana(r.readByte())
	d.CleanText = r.readString()
	return d
}
