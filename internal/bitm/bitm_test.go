// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package bitm

import (
	"testing"
	"unsafe"
)

func TestNbit(t *testing.T) {
	for _, x := range [...][2]int{
		{int(unsafe.Sizeof(uint(0))) * 8, (&Bitm[uint]{}).nbit()},
		{int(unsafe.Sizeof(uint8(0))) * 8, (&Bitm[uint8]{}).nbit()},
		{int(unsafe.Sizeof(uint16(0))) * 8, (&Bitm[uint16]{}).nbit()},
		{int(unsafe.Sizeof(uint32(0))) * 8, (&Bitm[uint32]{}).nbit()},
		{int(unsafe.Sizeof(uint64(0))) * 8, (&Bitm[uint64]{}).nbit()},
		{int(unsafe.Sizeof(uintptr(0))) * 8, (&Bitm[uintptr]{}).nbit()},
	} {
		if x[0] != x[1] {
			t.Fatalf("Bitm[T].nbit:\nhave %v\nwant %v", x[0], x[1])
		}
	}
}

func TestZero(t *testing.T) {
	var bitm16 Bitm[uint16]
	if bitm16.m != nil {
		t.Fatalf("bitm16.m:\nhave %v\nwant nil", bitm16.m)
	}
	if bitm16.rem != 0 {
		t.Fatalf("bitm16.rem:\nhave %v\nwant 0", bitm16.rem)
	}
	if n := bitm16.Len(); n != 0 {
		t.Fatalf("bitm16.Len:\nhave %v\nwant 0", n)
	}
	if n := bitm16.Cap(); n != 0 {
		t.Fatalf("bitm16.Cap:\nhave %v\nwant 0", n)
	}
}

func TestGrow(t *testing.T) {
	var m Bitm[uint8]
	if idx := m.Grow(2); idx != 0 {
		t.Fatalf("Bitm.Grow:\nhave %v\nwant 0", idx)
	}
	if idx := m.Grow(1); idx != 16 {
		t.Fatalf("Bitm.Grow:\nhave %v\nwant 16", idx)
	}
	if idx := m.Grow(0); idx != 24 {
		t.Fatalf("Bitm.Grow:\nhave %v\nwant 24", idx)
	}
	if n := m.Cap(); n != 24 {
		t.Fatalf("Bitm.Cap:\nhave %v\nwant 24", n)
	}
	if n := m.Rem(); n != 24 {
		t.Fatalf("Bitm.Rem:\nhave %v\nwant 24", n)
	}
}

func TestSetUnset(t *testing.T) {
	var m Bitm[uint32]
	m.Grow(2)
	for _, i := range [...]int{0, 1, 31, 32, 63} {
		m.Set(i)
		if !m.IsSet(i) {
			t.Fatalf("Bitm.IsSet(%d):\nhave false\nwant true", i)
		}
	}
	m.Set(31)
	if n := m.Len(); n != 5 {
		t.Fatalf("Bitm.Len:\nhave %v\nwant 5", n)
	}
	m.Unset(32)
	m.Unset(32)
	if m.IsSet(32) {
		t.Fatal("Bitm.IsSet(32):\nhave true\nwant false")
	}
	if n := m.Len(); n != 4 {
		t.Fatalf("Bitm.Len:\nhave %v\nwant 4", n)
	}
	if n := m.Rem(); n != 60 {
		t.Fatalf("Bitm.Rem:\nhave %v\nwant 60", n)
	}
}

func TestSearch(t *testing.T) {
	var m Bitm[uint16]
	if _, ok := m.Search(); ok {
		t.Fatal("Bitm.Search: unexpected success on empty map")
	}
	m.Grow(2)
	for i := range 20 {
		idx, ok := m.Search()
		if !ok || idx != i {
			t.Fatalf("Bitm.Search:\nhave %v, %v\nwant %v, true", idx, ok, i)
		}
		m.Set(idx)
	}
	m.Unset(3)
	if idx, _ := m.Search(); idx != 3 {
		t.Fatalf("Bitm.Search:\nhave %v\nwant 3", idx)
	}
	for i := range m.Cap() {
		m.Set(i)
	}
	if _, ok := m.Search(); ok {
		t.Fatal("Bitm.Search: unexpected success on full map")
	}
}

func TestApply(t *testing.T) {
	var m Bitm[uint8]
	m.Grow(2)
	m.Set(0)
	m.Set(4)
	m.Set(9)
	m.Apply(func(w uint8) uint8 { return w | (w&0x55)<<1 })
	for _, x := range [...]struct {
		i   int
		set bool
	}{{0, true}, {1, true}, {2, false}, {4, true}, {5, true}, {8, false}, {9, true}, {10, false}} {
		if m.IsSet(x.i) != x.set {
			t.Fatalf("Bitm.IsSet(%d):\nhave %v\nwant %v", x.i, !x.set, x.set)
		}
	}
	if n := m.Len(); n != 5 {
		t.Fatalf("Bitm.Len:\nhave %v\nwant 5", n)
	}
	m.Clear()
	if n := m.Len(); n != 0 {
		t.Fatalf("Bitm.Len:\nhave %v\nwant 0", n)
	}
	if n := m.Rem(); n != 16 {
		t.Fatalf("Bitm.Rem:\nhave %v\nwant 16", n)
	}
}
