// Package entry defines the grammatical entries stored in a kosha lexicon.
//
// An [Entry] is one morphological analysis of a surface form. The variant set is
// closed:
//
//   - [Tinanta]: a finite verb form, built on a [DhatuEntry].
//   - [Subanta]: an inflected nominal, built on a [PratipadikaEntry], which is
//     itself either a [Basic] stem or a [Krdanta] (a nominal derived from a
//     verbal root, carrying its own [DhatuEntry]).
//
// All variants are comparable value types, so two entries with identical fields
// are == and interchangeable. The storage engine never looks inside an entry; it
// only needs the stable encode/decode pair provided by package codec.
//
// # Example
//
//	gam, _ := entry.NewDhatuEntry(entry.Dhatu{Aupadeshika: "ga\\mx", Gana: entry.Bhvadi}, "gam")
//	e := entry.Tinanta{
//	    Dhatu:   gam,
//	    Prayoga: entry.Kartari,
//	    Lakara:  entry.Lat,
//	    Purusha: entry.Prathama,
//	    Vacana:  entry.Eka,
//	}
package entry
