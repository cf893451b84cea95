package entry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gam(t *testing.T) DhatuEntry {
	t.Helper()
	d, err := NewDhatuEntry(Dhatu{Aupadeshika: "ga\\mx", Gana: Bhvadi}, "gam")
	require.NoError(t, err)
	return d
}

func TestNewDhatuEntry(t *testing.T) {
	_, err := NewDhatuEntry(Dhatu{Aupadeshika: "ga\\mx", Gana: Bhvadi}, "")
	assert.ErrorIs(t, err, ErrIncompleteDhatu)

	_, err = NewDhatuEntry(Dhatu{Gana: Bhvadi}, "gam")
	assert.ErrorIs(t, err, ErrIncompleteDhatu)

	_, err = NewDhatuEntry(Dhatu{Aupadeshika: "ga\\mx"}, "gam")
	assert.ErrorIs(t, err, ErrInvalidValue)

	d := gam(t)
	assert.Equal(t, "gam", d.CleanText)
	assert.Equal(t, Bhvadi, d.Dhatu.Gana)
}

func TestEntryKindAndLemma(t *testing.T) {
	d := gam(t)

	tin := Tinanta{Dhatu: d, Prayoga: Kartari, Lakara: Lat, Purusha: Prathama, Vacana: Eka}
	require.NoError(t, tin.Validate())
	assert.Equal(t, KindTinanta, tin.Kind())
	assert.Equal(t, "gam", tin.Lemma())

	sub := Subanta{
		Pratipadika: Krdanta{Dhatu: d, Krt: Satf},
		Linga:       Pum,
		Vibhakti:    VibhaktiSaptami,
		Vacana:      Eka,
	}
	require.NoError(t, sub.Validate())
	assert.Equal(t, KindSubanta, sub.Kind())
	assert.Equal(t, "gam", sub.Lemma())

	basic := Subanta{
		Pratipadika: Basic{Text: "deva", Lingas: NewLingaSet(Pum)},
		Linga:       Pum,
		Vibhakti:    VibhaktiPrathama,
		Vacana:      Bahu,
	}
	require.NoError(t, basic.Validate())
	assert.Equal(t, "deva", basic.Lemma())
}

func TestValidateRejectsZeroFields(t *testing.T) {
	d := gam(t)

	cases := map[string]Entry{
		"no prayoga":     Tinanta{Dhatu: d, Lakara: Lat, Purusha: Prathama, Vacana: Eka},
		"no lakara":      Tinanta{Dhatu: d, Prayoga: Kartari, Purusha: Prathama, Vacana: Eka},
		"no purusha":     Tinanta{Dhatu: d, Prayoga: Kartari, Lakara: Lat, Vacana: Eka},
		"bad vacana":     Tinanta{Dhatu: d, Prayoga: Kartari, Lakara: Lat, Purusha: Prathama, Vacana: 9},
		"no pratipadika": Subanta{Linga: Pum, Vibhakti: VibhaktiPrathama, Vacana: Eka},
		"empty basic":    Subanta{Pratipadika: Basic{}, Linga: Pum, Vibhakti: VibhaktiPrathama, Vacana: Eka},
		"bad krt":        Subanta{Pratipadika: Krdanta{Dhatu: d}, Linga: Pum, Vibhakti: VibhaktiPrathama, Vacana: Eka},
		"no vibhakti":    Subanta{Pratipadika: Basic{Text: "deva"}, Linga: Pum, Vacana: Eka},
	}
	for name, e := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, e.Validate(), ErrInvalidValue)
		})
	}

	partial := Tinanta{Dhatu: DhatuEntry{CleanText: "gam"}, Prayoga: Kartari, Lakara: Lat, Purusha: Prathama, Vacana: Eka}
	assert.ErrorIs(t, partial.Validate(), ErrIncompleteDhatu)
}

func TestValidateEntry(t *testing.T) {
	d := gam(t)
	tin := Tinanta{Dhatu: d, Prayoga: Kartari, Lakara: Lat, Purusha: Prathama, Vacana: Eka}
	require.NoError(t, Validate(tin))

	for _, e := range []Entry{nil, (*Tinanta)(nil), &tin, (*Subanta)(nil)} {
		assert.ErrorIs(t, Validate(e), ErrInvalidValue, "%#v", e)
	}

	sub := Subanta{Pratipadika: (*Krdanta)(nil), Linga: Pum, Vibhakti: VibhaktiPrathama, Vacana: Eka}
	assert.ErrorIs(t, Validate(sub), ErrInvalidValue)
	assert.ErrorIs(t, sub.Validate(), ErrInvalidValue)

	sub.Pratipadika = &Basic{Text: "deva"}
	assert.ErrorIs(t, sub.Validate(), ErrInvalidValue)
}

func TestEqual(t *testing.T) {
	d := gam(t)
	a := Subanta{Pratipadika: Krdanta{Dhatu: d, Krt: Satf}, Linga: Pum, Vibhakti: VibhaktiSaptami, Vacana: Eka}
	b := Subanta{Pratipadika: Krdanta{Dhatu: d, Krt: Satf}, Linga: Pum, Vibhakti: VibhaktiSaptami, Vacana: Eka}
	c := b
	c.Vacana = Dvi

	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, c))
	assert.False(t, Equal(a, Tinanta{Dhatu: d, Prayoga: Kartari, Lakara: Lat, Purusha: Prathama, Vacana: Eka}))
}

func TestEnumParseAndString(t *testing.T) {
	g, err := ParseGana("bhvadi")
	require.NoError(t, err)
	assert.Equal(t, Bhvadi, g)
	assert.Equal(t, "Bhvadi", g.String())

	v, err := ParseVibhakti("Saptami")
	require.NoError(t, err)
	assert.Equal(t, VibhaktiSaptami, v)

	k, err := ParseKrt("Satf")
	require.NoError(t, err)
	assert.Equal(t, Satf, k)

	_, err = ParseKrt("satf")
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = ParseLakara("nope")
	assert.ErrorIs(t, err, ErrInvalidValue)

	assert.Equal(t, "Lakara(0)", Lakara(0).String())
	assert.False(t, Purusha(0).Valid())
	assert.False(t, Purusha(4).Valid())

	_, err = Linga(0).MarshalText()
	assert.ErrorIs(t, err, ErrInvalidValue)

	var l Linga
	require.NoError(t, l.UnmarshalText([]byte("Stri")))
	assert.Equal(t, Stri, l)
}

func TestLingaSet(t *testing.T) {
	s := NewLingaSet(Napumsaka, Pum)
	assert.True(t, s.Has(Pum))
	assert.False(t, s.Has(Stri))
	assert.True(t, s.Has(Napumsaka))
	assert.Equal(t, []Linga{Pum, Napumsaka}, s.Lingas())
	assert.Equal(t, "{Pum,Napumsaka}", s.String())
	assert.True(t, s.Valid())

	assert.False(t, LingaSet(1).Valid())
	assert.True(t, LingaSet(0).Valid())
	assert.Empty(t, LingaSet(0).Lingas())
}
