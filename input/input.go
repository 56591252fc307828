// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package input tracks keyboard and pointer state across
// frames.
//
// A State is fed by wsi events and queried by the frame
// loop. Each key stores two bits: its state in the current
// frame and its state at the previous frame boundary.
// ClearTransitions must be called exactly once per frame,
// before the frame's events are dispatched.
package input

import (
	"github.com/gviegas/vkb/internal/bitm"
	"github.com/gviegas/vkb/wsi"
)

// State is the input state of a single window.
// It implements wsi.KeyboardHandler and wsi.PointerHandler.
type State struct {
	keys  bitm.Bitm[uint8]
	mouse [2]int
	delta [2]float64
	wheel [2]float64
	inWin bool
}

// New creates a new input state with every key released.
func New() *State {
	s := new(State)
	s.keys.Grow((int(wsi.KeyCount)*2 + 7) / 8)
	return s
}

// Key k stores its current state at bit 2k and its
// previous state at bit 2k+1.
const curMask = 0x55

func (s *State) set(k wsi.Key, pressed bool) {
	if k <= wsi.KeyUnknown || k >= wsi.KeyCount {
		return
	}
	if pressed {
		s.keys.Set(int(k) * 2)
	} else {
		s.keys.Unset(int(k) * 2)
	}
}

func (s *State) cur(k wsi.Key) bool {
	if k <= wsi.KeyUnknown || k >= wsi.KeyCount {
		return false
	}
	return s.keys.IsSet(int(k) * 2)
}

func (s *State) prev(k wsi.Key) bool {
	if k <= wsi.KeyUnknown || k >= wsi.KeyCount {
		return false
	}
	return s.keys.IsSet(int(k)*2 + 1)
}

// ClearTransitions makes the current state of every key
// the baseline for edge queries, and zeroes the relative
// pointer motion and wheel offsets accumulated during the
// previous frame.
func (s *State) ClearTransitions() {
	s.keys.Apply(func(w uint8) uint8 {
		return w&curMask | (w&curMask)<<1
	})
	s.delta = [2]float64{}
	s.wheel = [2]float64{}
}

// Pressed reports whether k is held down.
func (s *State) Pressed(k wsi.Key) bool { return s.cur(k) }

// Released reports whether k is not held down.
func (s *State) Released(k wsi.Key) bool { return !s.cur(k) }

// JustPressed reports whether k went down since the last
// call to ClearTransitions.
func (s *State) JustPressed(k wsi.Key) bool { return s.cur(k) && !s.prev(k) }

// JustReleased reports whether k went up since the last
// call to ClearTransitions.
func (s *State) JustReleased(k wsi.Key) bool { return !s.cur(k) && s.prev(k) }

// Mouse returns the absolute pointer position.
func (s *State) Mouse() (x, y int) { return s.mouse[0], s.mouse[1] }

// MouseDelta returns the relative pointer motion
// accumulated since the last call to ClearTransitions.
func (s *State) MouseDelta() (dx, dy float64) { return s.delta[0], s.delta[1] }

// Wheel returns the wheel offsets accumulated since the
// last call to ClearTransitions.
func (s *State) Wheel() (dx, dy float64) { return s.wheel[0], s.wheel[1] }

// InWindow reports whether the pointer is inside the window.
func (s *State) InWindow() bool { return s.inWin }

// KeyboardIn implements wsi.KeyboardHandler.
func (s *State) KeyboardIn(wsi.Window) {}

// KeyboardOut implements wsi.KeyboardHandler.
// Keys held when focus is lost are released, since their
// release event will not be delivered.
func (s *State) KeyboardOut(wsi.Window) {
	for k := wsi.KeyUnknown + 1; k < wsi.KeyMouse1; k++ {
		s.set(k, false)
	}
}

// KeyboardKey implements wsi.KeyboardHandler.
func (s *State) KeyboardKey(key wsi.Key, pressed bool, _ wsi.Modifier) {
	s.set(key, pressed)
}

// PointerIn implements wsi.PointerHandler.
func (s *State) PointerIn(_ wsi.Window, x, y int) {
	s.inWin = true
	s.mouse = [2]int{x, y}
}

// PointerOut implements wsi.PointerHandler.
func (s *State) PointerOut(wsi.Window) { s.inWin = false }

// PointerMotion implements wsi.PointerHandler.
func (s *State) PointerMotion(newX, newY int) { s.mouse = [2]int{newX, newY} }

// PointerDelta implements wsi.PointerHandler.
func (s *State) PointerDelta(dx, dy float64) {
	s.delta[0] += dx
	s.delta[1] += dy
}

// PointerWheel implements wsi.PointerHandler.
func (s *State) PointerWheel(dx, dy float64) {
	s.wheel[0] += dx
	s.wheel[1] += dy
}

// PointerButton implements wsi.PointerHandler.
func (s *State) PointerButton(btn wsi.Button, pressed bool, x, y int) {
	s.mouse = [2]int{x, y}
	s.set(btn.Key(), pressed)
}
