package codec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/hupe1980/kosha/entry"
)

const jsonVersion = 1

// JSON is a tagged-union JSON codec.
//
// Records look like:
//
//	{"v":1,"type":"tinanta","dhatu":{"aupadeshika":"ga\\mx","gana":"Bhvadi","text":"gam"},
//	 "prayoga":"Kartari","lakara":"Lat","purusha":"Prathama","vacana":"Eka"}
//
// It is several times larger than Binary but readable with standard tools. The
// CLI uses it as the input format for build.
type JSON struct{}

// Name returns "json".
func (JSON) Name() string { return "json" }

// Version returns the record format version.
func (JSON) Version() uint32 { return jsonVersion }

type jsonDhatu struct {
	Aupadeshika string     `json:"aupadeshika"`
	Gana        entry.Gana `json:"gana"`
	Text        string     `json:"text"`
}

type jsonPratipadika struct {
	Type   string        `json:"type"`
	Text   string        `json:"text,omitempty"`
	Lingas []entry.Linga `json:"lingas,omitempty"`
	Dhatu  *jsonDhatu    `json:"dhatu,omitempty"`
	Krt    entry.Krt     `json:"krt,omitempty"`
}

type jsonEntry struct {
	V    int    `json:"v"`
	Type string `json:"type"`

	// tinanta
	Dhatu   *jsonDhatu    `json:"dhatu,omitempty"`
	Prayoga entry.Prayoga `json:"prayoga,omitempty"`
	Lakara  entry.Lakara  `json:"lakara,omitempty"`
	Purusha entry.Purusha `json:"purusha,omitempty"`

	// subanta
	Pratipadika *jsonPratipadika `json:"pratipadika,omitempty"`
	Linga       entry.Linga      `json:"linga,omitempty"`
	Vibhakti    entry.Vibhakti   `json:"vibhakti,omitempty"`

	Vacana entry.Vacana `json:"vacana"`
}

// Append encodes e as a single line of JSON and appends it to dst.
func (JSON) Append(dst []byte, e entry.Entry) ([]byte, error) {
	if err := entry.Validate(e); err != nil {
		return dst, err
	}

	je := jsonEntry{V: jsonVersion}
	switch v := e.(type) {
	case entry.Tinanta:
		je.Type = "tinanta"
		je.Dhatu = toJSONDhatu(v.Dhatu)
		je.Prayoga, je.Lakara, je.Purusha, je.Vacana = v.Prayoga, v.Lakara, v.Purusha, v.Vacana
	case entry.Subanta:
		je.Type = "subanta"
		switch p := v.Pratipadika.(type) {
		case entry.Basic:
			je.Pratipadika = &jsonPratipadika{Type: "basic", Text: p.Text, Lingas: p.Lingas.Lingas()}
		case entry.Krdanta:
			je.Pratipadika = &jsonPratipadika{Type: "krdanta", Dhatu: toJSONDhatu(p.Dhatu), Krt: p.Krt}
		default:
			return dst, fmt.Errorf("%w: pratipadika %T", entry.ErrInvalidValue, v.Pratipadika)
		}
		je.Linga, je.Vibhakti, je.Vacana = v.Linga, v.Vibhakti, v.Vacana
	default:
		return dst, fmt.Errorf("%w: entry %T", entry.ErrInvalidValue, e)
	}

	b, err := json.Marshal(je)
	if err != nil {
		return dst, err
	}
	return append(dst, b...), nil
}

// Decode parses one JSON record. Unknown fields are rejected.
func (JSON) Decode(data []byte) (entry.Entry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var je jsonEntry
	if err := dec.Decode(&je); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if rest := bytes.TrimSpace(data[dec.InputOffset():]); len(rest) > 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorruptRecord, len(rest))
	}
	if je.V != jsonVersion {
		return nil, fmt.Errorf("%w: unknown version %d", ErrCorruptRecord, je.V)
	}

	var e entry.Entry
	switch je.Type {
	case "tinanta":
		if je.Pratipadika != nil || je.Linga != 0 || je.Vibhakti != 0 {
			return nil, fmt.Errorf("%w: tinanta with subanta fields", ErrCorruptRecord)
		}
		e = entry.Tinanta{
			Dhatu:   fromJSONDhatu(je.Dhatu),
			Prayoga: je.Prayoga,
			Lakara:  je.Lakara,
			Purusha: je.Purusha,
			Vacana:  je.Vacana,
		}
	case "subanta":
		if je.Dhatu != nil || je.Prayoga != 0 || je.Lakara != 0 || je.Purusha != 0 {
			return nil, fmt.Errorf("%w: subanta with tinanta fields", ErrCorruptRecord)
		}
		s := entry.Subanta{Linga: je.Linga, Vibhakti: je.Vibhakti, Vacana: je.Vacana}
		if p := je.Pratipadika; p != nil {
			switch p.Type {
			case "basic":
				if p.Dhatu != nil || p.Krt != 0 {
					return nil, fmt.Errorf("%w: basic pratipadika with krdanta fields", ErrCorruptRecord)
				}
				s.Pratipadika = entry.Basic{Text: p.Text, Lingas: entry.NewLingaSet(p.Lingas...)}
			case "krdanta":
				if p.Text != "" || p.Lingas != nil {
					return nil, fmt.Errorf("%w: krdanta pratipadika with basic fields", ErrCorruptRecord)
				}
				s.Pratipadika = entry.Krdanta{Dhatu: fromJSONDhatu(p.Dhatu), Krt: p.Krt}
			default:
				return nil, fmt.Errorf("%w: unknown pratipadika type %q", ErrCorruptRecord, p.Type)
			}
		}
		e = s
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrCorruptRecord, je.Type)
	}

	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return e, nil
}

func toJSONDhatu(d entry.DhatuEntry) *jsonDhatu {
	return &jsonDhatu{Aupadeshika: d.Dhatu.Aupadeshika, Gana: d.Dhatu.Gana, Text: d.CleanText}
}

func fromJSONDhatu(d *jsonDhatu) entry.DhatuEntry {
	if d == nil {
		return entry.DhatuEntry{}
	}
	return entry.DhatuEntry{
		Dhatu:     entry.Dhatu{Aupadeshika: d.Aupadeshika, Gana: d.Gana},
		CleanText: d.Text,
	}
}
