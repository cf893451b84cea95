package entry

import (
	"fmt"
	"strings"
)

// Gana is the conjugation class of a verbal root.
type Gana uint8

const (
	Bhvadi Gana = iota + 1
	Adadi
	Juhotyadi
	Divadi
	Svadi
	Tudadi
	Rudhadi
	Tanadi
	Kryadi
	Curadi
	Kandvadi
)

var ganaNames = []string{"", "Bhvadi", "Adadi", "Juhotyadi", "Divadi", "Svadi", "Tudadi", "Rudhadi", "Tanadi", "Kryadi", "Curadi", "Kandvadi"}

// Prayoga is the voice of a verb form.
type Prayoga uint8

const (
	Kartari Prayoga = iota + 1
	Karmani
	Bhave
)

var prayogaNames = []string{"", "Kartari", "Karmani", "Bhave"}

// Lakara is the tense-mood of a verb form.
type Lakara uint8

const (
	Lat Lakara = iota + 1
	Lit
	Lut
	Lrt
	Let
	Lot
	Lan
	VidhiLin
	AshirLin
	Lun
	Lrn
)

var lakaraNames = []string{"", "Lat", "Lit", "Lut", "Lrt", "Let", "Lot", "Lan", "VidhiLin", "AshirLin", "Lun", "Lrn"}

// Purusha is the person of a verb form.
type Purusha uint8

const (
	Prathama Purusha = iota + 1
	Madhyama
	Uttama
)

var purushaNames = []string{"", "Prathama", "Madhyama", "Uttama"}

// Vacana is grammatical number.
type Vacana uint8

const (
	Eka Vacana = iota + 1
	Dvi
	Bahu
)

var vacanaNames = []string{"", "Eka", "Dvi", "Bahu"}

// Linga is grammatical gender.
type Linga uint8

const (
	Pum Linga = iota + 1
	Stri
	Napumsaka
)

var lingaNames = []string{"", "Pum", "Stri", "Napumsaka"}

// Vibhakti is the case of a nominal form.
type Vibhakti uint8

const (
	VibhaktiPrathama Vibhakti = iota + 1
	VibhaktiDvitiya
	VibhaktiTrtiya
	VibhaktiCaturthi
	VibhaktiPanchami
	VibhaktiSasthi
	VibhaktiSaptami
	VibhaktiSambodhana
)

var vibhaktiNames = []string{"", "Prathama", "Dvitiya", "Trtiya", "Caturthi", "Panchami", "Sasthi", "Saptami", "Sambodhana"}

// Krt is a primary derivational suffix that turns a root into a nominal stem.
// Names follow SLP1 spelling of the suffix with its markers.
type Krt uint8

const (
	Satf Krt = iota + 1
	SAnac
	Kta
	Ktavatu
	Tavyat
	AnIyar
	Yat
	Ryat
	Kyap
	KtvA
	Lyap
	Tumun
	Rvul
	Tfc
	Lyuw
	GaY
	Ac
	Ap
	Ka
	Kvip
	KAnac
	Kvasu
	Rini
	Ktin
	Yuc
	IzRuc
	Kmarac
	UR
)

var krtNames = []string{"", "Satf", "SAnac", "kta", "ktavatu", "tavyat", "anIyar", "yat", "Ryat", "kyap", "ktvA", "lyap", "tumun", "Rvul", "tfc", "lyuw", "GaY", "ac", "ap", "ka", "kvip", "kAnac", "kvasu", "Rini", "ktin", "yuc", "izRuc", "kmarac", "uR"}

func (g Gana) String() string     { return enumString(ganaNames, g, "Gana") }
func (p Prayoga) String() string  { return enumString(prayogaNames, p, "Prayoga") }
func (l Lakara) String() string   { return enumString(lakaraNames, l, "Lakara") }
func (p Purusha) String() string  { return enumString(purushaNames, p, "Purusha") }
func (v Vacana) String() string   { return enumString(vacanaNames, v, "Vacana") }
func (l Linga) String() string    { return enumString(lingaNames, l, "Linga") }
func (v Vibhakti) String() string { return enumString(vibhaktiNames, v, "Vibhakti") }
func (k Krt) String() string      { return enumString(krtNames, k, "Krt") }

// Valid reports whether g names a known conjugation class.
func (g Gana) Valid() bool     { return validEnum(ganaNames, g) }
func (p Prayoga) Valid() bool  { return validEnum(prayogaNames, p) }
func (l Lakara) Valid() bool   { return validEnum(lakaraNames, l) }
func (p Purusha) Valid() bool  { return validEnum(purushaNames, p) }
func (v Vacana) Valid() bool   { return validEnum(vacanaNames, v) }
func (l Linga) Valid() bool    { return validEnum(lingaNames, l) }
func (v Vibhakti) Valid() bool { return validEnum(vibhaktiNames, v) }
func (k Krt) Valid() bool      { return validEnum(krtNames, k) }

func ParseGana(s string) (Gana, error)         { return parseEnum[Gana](ganaNames, s, "gana") }
func ParsePrayoga(s string) (Prayoga, error)   { return parseEnum[Prayoga](prayogaNames, s, "prayoga") }
func ParseLakara(s string) (Lakara, error)     { return parseEnum[Lakara](lakaraNames, s, "lakara") }
func ParsePurusha(s string) (Purusha, error)   { return parseEnum[Purusha](purushaNames, s, "purusha") }
func ParseVacana(s string) (Vacana, error)     { return parseEnum[Vacana](vacanaNames, s, "vacana") }
func ParseLinga(s string) (Linga, error)       { return parseEnum[Linga](lingaNames, s, "linga") }
func ParseVibhakti(s string) (Vibhakti, error) { return parseEnum[Vibhakti](vibhaktiNames, s, "vibhakti") }

// ParseKrt parses a krt suffix name. Matching is exact because SLP1 is case-sensitive.
func ParseKrt(s string) (Krt, error) {
	for i := 1; i < len(krtNames); i++ {
		if krtNames[i] == s {
			return Krt(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown krt %q", ErrInvalidValue, s)
}

func (g Gana) MarshalText() ([]byte, error)     { return marshalEnum(ganaNames, g, "gana") }
func (p Prayoga) MarshalText() ([]byte, error)  { return marshalEnum(prayogaNames, p, "prayoga") }
func (l Lakara) MarshalText() ([]byte, error)   { return marshalEnum(lakaraNames, l, "lakara") }
func (p Purusha) MarshalText() ([]byte, error)  { return marshalEnum(purushaNames, p, "purusha") }
func (v Vacana) MarshalText() ([]byte, error)   { return marshalEnum(vacanaNames, v, "vacana") }
func (l Linga) MarshalText() ([]byte, error)    { return marshalEnum(lingaNames, l, "linga") }
func (v Vibhakti) MarshalText() ([]byte, error) { return marshalEnum(vibhaktiNames, v, "vibhakti") }
func (k Krt) MarshalText() ([]byte, error)      { return marshalEnum(krtNames, k, "krt") }

func (g *Gana) UnmarshalText(b []byte) (err error)     { *g, err = ParseGana(string(b)); return }
func (p *Prayoga) UnmarshalText(b []byte) (err error)  { *p, err = ParsePrayoga(string(b)); return }
func (l *Lakara) UnmarshalText(b []byte) (err error)   { *l, err = ParseLakara(string(b)); return }
func (p *Purusha) UnmarshalText(b []byte) (err error)  { *p, err = ParsePurusha(string(b)); return }
func (v *Vacana) UnmarshalText(b []byte) (err error)   { *v, err = ParseVacana(string(b)); return }
func (l *Linga) UnmarshalText(b []byte) (err error)    { *l, err = ParseLinga(string(b)); return }
func (v *Vibhakti) UnmarshalText(b []byte) (err error) { *v, err = ParseVibhakti(string(b)); return }
func (k *Krt) UnmarshalText(b []byte) (err error)      { *k, err = ParseKrt(string(b)); return }

// LingaSet is a set of genders, stored as a bitmask indexed by Linga.
type LingaSet uint8

// NewLingaSet returns the set holding the given genders.
func NewLingaSet(lingas ...Linga) LingaSet {
	var s LingaSet
	for _, l := range lingas {
		s = s.With(l)
	}
	return s
}

// With returns s with l added.
func (s LingaSet) With(l Linga) LingaSet { return s | 1<<l }

// Has reports whether l is in the set.
func (s LingaSet) Has(l Linga) bool { return l.Valid() && s&(1<<l) != 0 }

// Valid reports whether the set only holds known genders.
func (s LingaSet) Valid() bool {
	var all LingaSet
	for l := Pum; l <= Napumsaka; l++ {
		all = all.With(l)
	}
	return s&^all == 0
}

// Lingas returns the members in ascending order.
func (s LingaSet) Lingas() []Linga {
	var out []Linga
	for l := Pum; l <= Napumsaka; l++ {
		if s.Has(l) {
			out = append(out, l)
		}
	}
	return out
}

func (s LingaSet) String() string {
	ls := s.Lingas()
	parts := make([]string, len(ls))
	for i, l := range ls {
		parts[i] = l.String()
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func enumString[T ~uint8](names []string, v T, kind string) string {
	if validEnum(names, v) {
		return names[v]
	}
	return fmt.Sprintf("%s(%d)", kind, uint8(v))
}

func validEnum[T ~uint8](names []string, v T) bool {
	return v > 0 && int(v) < len(names)
}

func parseEnum[T ~uint8](names []string, s, kind string) (T, error) {
	for i := 1; i < len(names); i++ {
		if strings.EqualFold(names[i], s) {
			return T(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown %s %q", ErrInvalidValue, kind, s)
}

func marshalEnum[T ~uint8](names []string, v T, kind string) ([]byte, error) {
	if !validEnum(names, v) {
		return nil, fmt.Errorf("%w: %s %d", ErrInvalidValue, kind, uint8(v))
	}
	return []byte(names[v]), nil
}
