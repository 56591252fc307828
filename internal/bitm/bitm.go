// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package bitm defines a bitmap type useful for resource management
// (e.g., object tracking and packed state flags).
package bitm

import (
	"math/bits"
	"unsafe"
)

// Uint represents the granularity of a bitmap.
type Uint interface {
	~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Bitm is a growable bitmap with custom granularity.
type Bitm[T Uint] struct {
	m   []T
	rem int
}

// nbit returns the number of bits in T.
func (m *Bitm[T]) nbit() int { return int(unsafe.Sizeof(T(0))) * 8 }

// Len returns the number of bits set in the map.
func (m *Bitm[_]) Len() int { return len(m.m)*m.nbit() - m.rem }

// Cap returns the number of bits in the map.
func (m *Bitm[_]) Cap() int { return len(m.m) * m.nbit() }

// Rem returns the number of unset bits in the map.
func (m *Bitm[_]) Rem() int { return m.rem }

// Grow appends nplus unset Uints to the map.
// It returns the value of m.Cap prior to growing, which is
// the index of the first new bit.
func (m *Bitm[T]) Grow(nplus int) (index int) {
	index = m.Cap()
	if nplus > 0 {
		m.m = append(m.m, make([]T, nplus)...)
		m.rem += nplus * m.nbit()
	}
	return
}

// Set sets a given bit.
func (m *Bitm[T]) Set(index int) {
	n := m.nbit()
	b := T(1) << (index % n)
	if w := &m.m[index/n]; *w&b == 0 {
		*w |= b
		m.rem--
	}
}

// Unset unsets a given bit.
func (m *Bitm[T]) Unset(index int) {
	n := m.nbit()
	b := T(1) << (index % n)
	if w := &m.m[index/n]; *w&b != 0 {
		*w &^= b
		m.rem++
	}
}

// IsSet checks whether a given bit is set.
func (m *Bitm[T]) IsSet(index int) bool {
	n := m.nbit()
	return m.m[index/n]&(T(1)<<(index%n)) != 0
}

// Search locates the first unset bit in the map.
// It fails only when m.Rem() == 0.
func (m *Bitm[T]) Search() (index int, ok bool) {
	if m.rem == 0 {
		return
	}
	for i, w := range m.m {
		if w == ^T(0) {
			continue
		}
		return i*m.nbit() + bits.TrailingZeros64(uint64(^w)), true
	}
	return
}

// Apply replaces every Uint w of the map with f(w).
// Bit i of the map is bit i%nbit of the Uint i/nbit.
func (m *Bitm[T]) Apply(f func(w T) T) {
	n := m.nbit()
	m.rem = 0
	for i := range m.m {
		m.m[i] = f(m.m[i])
		m.rem += n - bits.OnesCount64(uint64(m.m[i]))
	}
}

// Clear unsets every bit in the map.
func (m *Bitm[_]) Clear() {
	clear(m.m)
	m.rem = m.Cap()
}
