package entry

import (
	"errors"
	"fmt"
)

var (
	// ErrIncompleteDhatu is returned when a DhatuEntry is missing its root or its
	// clean rendering. The two are always co-present.
	ErrIncompleteDhatu = errors.New("entry: incomplete dhatu entry")

	// ErrInvalidValue is returned for out-of-range enumerations and empty required
	// fields.
	ErrInvalidValue = errors.New("entry: invalid value")
)

// Kind identifies the top-level variant of an Entry.
type Kind uint8

const (
	KindTinanta Kind = iota + 1
	KindSubanta
)

func (k Kind) String() string {
	switch k {
	case KindTinanta:
		return "tinanta"
	case KindSubanta:
		return "subanta"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Kinds lists every entry kind.
var Kinds = []Kind{KindTinanta, KindSubanta}

// Entry is one grammatical analysis of a surface form.
//
// The set of implementations is closed: Tinanta and Subanta.
type Entry interface {
	// Kind returns the variant tag.
	Kind() Kind
	// Lemma returns the dictionary headword the form inflects from.
	Lemma() string
	// Validate reports whether every field is populated and in range.
	Validate() error

	isEntry()
}

// Dhatu is a verbal root as listed in the Dhatupatha.
type Dhatu struct {
	// Aupadeshika is the root in its instructional form, with accent and
	// it-markers (e.g. "ga\\mx").
	Aupadeshika string
	Gana        Gana
}

// DhatuEntry pairs a root with its clean rendering (e.g. "gam").
type DhatuEntry struct {
	Dhatu     Dhatu
	CleanText string
}

// NewDhatuEntry returns a validated DhatuEntry.
func NewDhatuEntry(d Dhatu, cleanText string) (DhatuEntry, error) {
	de := DhatuEntry{Dhatu: d, CleanText: cleanText}
	if err := de.Validate(); err != nil {
		return DhatuEntry{}, err
	}
	return de, nil
}

// Validate checks that root and clean text are both present.
func (d DhatuEntry) Validate() error {
	if d.Dhatu.Aupadeshika == "" || d.CleanText == "" {
		return ErrIncompleteDhatu
	}
	if !d.Dhatu.Gana.Valid() {
		return fmt.Errorf("%w: gana %d", ErrInvalidValue, uint8(d.Dhatu.Gana))
	}
	return nil
}

// PratipadikaEntry is a nominal stem: either Basic or Krdanta.
type PratipadikaEntry interface {
	Lemma() string
	Validate() error

	isPratipadika()
}

// Basic is a nominal stem that is not derived from a root in this lexicon.
type Basic struct {
	Text   string
	Lingas LingaSet
}

func (Basic) isPratipadika() {}

// Lemma returns the stem text.
func (b Basic) Lemma() string { return b.Text }

func (b Basic) Validate() error {
	if b.Text == "" {
		return fmt.Errorf("%w: empty pratipadika", ErrInvalidValue)
	}
	if !b.Lingas.Valid() {
		return fmt.Errorf("%w: linga set %08b", ErrInvalidValue, uint8(b.Lingas))
	}
	return nil
}

// Krdanta is a nominal derived from a root with a krt suffix.
type Krdanta struct {
	Dhatu DhatuEntry
	Krt   Krt
}

func (Krdanta) isPratipadika() {}

// Lemma returns the clean text of the underlying root.
func (k Krdanta) Lemma() string { return k.Dhatu.CleanText }

func (k Krdanta) Validate() error {
	if err := k.Dhatu.Validate(); err != nil {
		return err
	}
	if !k.Krt.Valid() {
		return fmt.Errorf("%w: krt %d", ErrInvalidValue, uint8(k.Krt))
	}
	return nil
}

// Tinanta is a finite verb form.
type Tinanta struct {
	Dhatu   DhatuEntry
	Prayoga Prayoga
	Lakara  Lakara
	Purusha Purusha
	Vacana  Vacana
}

func (Tinanta) isEntry() {}

func (Tinanta) Kind() Kind { return KindTinanta }

func (t Tinanta) Lemma() string { return t.Dhatu.CleanText }

func (t Tinanta) Validate() error {
	if err := t.Dhatu.Validate(); err != nil {
		return err
	}
	switch {
	case !t.Prayoga.Valid():
		return fmt.Errorf("%w: prayoga %d", ErrInvalidValue, uint8(t.Prayoga))
	case !t.Lakara.Valid():
		return fmt.Errorf("%w: lakara %d", ErrInvalidValue, uint8(t.Lakara))
	case !t.Purusha.Valid():
		return fmt.Errorf("%w: purusha %d", ErrInvalidValue, uint8(t.Purusha))
	case !t.Vacana.Valid():
		return fmt.Errorf("%w: vacana %d", ErrInvalidValue, uint8(t.Vacana))
	}
	return nil
}

// Subanta is an inflected nominal form.
type Subanta struct {
	Pratipadika PratipadikaEntry
	Linga       Linga
	Vibhakti    Vibhakti
	Vacana      Vacana
}

func (Subanta) isEntry() {}

func (Subanta) Kind() Kind { return KindSubanta }

func (s Subanta) Lemma() string {
	if s.Pratipadika == nil {
		return ""
	}
	return s.Pratipadika.Lemma()
}

func (s Subanta) Validate() error {
	switch s.Pratipadika.(type) {
	case nil:
		return fmt.Errorf("%w: missing pratipadika", ErrInvalidValue)
	case Basic, Krdanta:
	default:
		return fmt.Errorf("%w: pratipadika %T", ErrInvalidValue, s.Pratipadika)
	}
	if err := s.Pratipadika.Validate(); err != nil {
		return err
	}
	switch {
	case !s.Linga.Valid():
		return fmt.Errorf("%w: linga %d", ErrInvalidValue, uint8(s.Linga))
	case !s.Vibhakti.Valid():
		return fmt.Errorf("%w: vibhakti %d", ErrInvalidValue, uint8(s.Vibhakti))
	case !s.Vacana.Valid():
		return fmt.Errorf("%w: vacana %d", ErrInvalidValue, uint8(s.Vacana))
	}
	return nil
}

// Validate checks that e is one of the value variants Tinanta or Subanta and
// that its fields are valid. Pointers to variants are rejected.
func Validate(e Entry) error {
	switch e.(type) {
	case nil:
		return fmt.Errorf("%w: nil entry", ErrInvalidValue)
	case Tinanta, Subanta:
		return e.Validate()
	default:
		return fmt.Errorf("%w: entry %T", ErrInvalidValue, e)
	}
}

// Equal reports whether a and b are structurally identical.
func Equal(a, b Entry) bool {
	return a == b
}
