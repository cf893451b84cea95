// Package mmap maps immutable segment files read-only into memory.
//
//	m, err := mmap.Open("keys-000001.idx")
//	if err != nil { ... }
//	defer m.Close()
//
//	_ = m.Advise(mmap.AccessRandom)
//	data := m.Bytes() // zero-copy
//
// A mapping stays valid after its file is unlinked, so a reader that opened an
// older generation keeps working while a rebuild deletes it.
package mmap
