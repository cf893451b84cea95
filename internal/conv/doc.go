// Package conv provides bounds-checked integer conversions for values written
// to or read from fixed-width fields of on-disk formats.
package conv
