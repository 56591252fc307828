// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package shader

import (
	"encoding/binary"
	"math"
	"testing"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

func TestLayoutSize(t *testing.T) {
	for _, x := range [...]struct {
		name       string
		have, want uintptr
	}{
		{"CameraLayout", unsafe.Sizeof(CameraLayout{}), 128},
		{"CoordsLayout", unsafe.Sizeof(CoordsLayout{}), 144},
		{"StarLayout", unsafe.Sizeof(StarLayout{}), 32},
		{"ModelLayout", unsafe.Sizeof(ModelLayout{}), 64},
	} {
		if x.have != x.want {
			t.Fatalf("unsafe.Sizeof(%s):\nhave %d\nwant %d", x.name, x.have, x.want)
		}
	}
}

func TestCameraLayout(t *testing.T) {
	var l CameraLayout
	v := mgl32.Translate3D(1, 2, 3)
	p := mgl32.Perspective(1, 1.5, 0.1, 100)
	l.SetView(&v)
	l.SetProj(&p)
	for i := range 16 {
		if l[i] != v[i] {
			t.Fatalf("CameraLayout.SetView: [%d]\nhave %v\nwant %v", i, l[i], v[i])
		}
		if l[16+i] != p[i] {
			t.Fatalf("CameraLayout.SetProj: [%d]\nhave %v\nwant %v", i, l[16+i], p[i])
		}
	}
	b := l.Bytes()
	if len(b) != 128 {
		t.Fatalf("CameraLayout.Bytes: len\nhave %d\nwant 128", len(b))
	}
	// Column-major: the translation is at [12:15].
	if x := math.Float32frombits(binary.NativeEndian.Uint32(b[12*4:])); x != 1 {
		t.Fatalf("CameraLayout.Bytes: [12]\nhave %v\nwant 1", x)
	}
}

func TestCoordsLayout(t *testing.T) {
	var l CoordsLayout
	l.SetTranslate(mgl32.Vec2{0.25, -0.5})
	if l[32] != 0.25 || l[33] != -0.5 {
		t.Fatalf("CoordsLayout.SetTranslate:\nhave %v\nwant [0.25 -0.5]", l[32:34])
	}
	if l[34] != 0 || l[35] != 0 {
		t.Fatal("CoordsLayout.SetTranslate: padding modified")
	}
}

func TestStarBytes(t *testing.T) {
	if b := StarBytes(nil); b != nil {
		t.Fatalf("StarBytes(nil):\nhave %v\nwant nil", b)
	}
	s := make([]StarLayout, 3)
	s[2].SetPos(mgl32.Vec4{1, 2, 3, 1})
	s[2].SetIntensity(0.75)
	b := StarBytes(s)
	if len(b) != 96 {
		t.Fatalf("StarBytes: len\nhave %d\nwant 96", len(b))
	}
	if x := math.Float32frombits(binary.NativeEndian.Uint32(b[64+16:])); x != 0.75 {
		t.Fatalf("StarBytes: intensity\nhave %v\nwant 0.75", x)
	}
}
