// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package wsi

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// Init initializes the window system.
// It must be called from the main thread, which should
// be locked with runtime.LockOSThread.
// If it fails, PlatformInUse returns None.
func Init() error {
	if platform != None {
		return nil
	}
	if err := glfw.Init(); err != nil {
		return errors.Wrap(err, "wsi: glfw init")
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return errors.New("wsi: Vulkan loader not found")
	}
	platform = GLFW
	return nil
}

// Terminate closes every window and deinitializes the
// window system.
func Terminate() {
	if platform == None {
		return
	}
	for _, w := range Windows() {
		w.Close()
	}
	glfw.Terminate()
	platform = None
}

// GLFWWindow returns the GLFW window that backs win.
// It returns nil if win was not created by NewWindow.
func GLFWWindow(win Window) *glfw.Window {
	if w, ok := win.(*window); ok {
		return w.win
	}
	return nil
}

// VulkanProcAddr returns the vkGetInstanceProcAddr
// function loaded by the window system, or nil if wsi
// is not initialized.
func VulkanProcAddr() unsafe.Pointer {
	if platform == None {
		return nil
	}
	return glfw.GetVulkanGetInstanceProcAddress()
}

// VulkanExtensions returns the names of the Vulkan
// instance extensions needed to present to windows.
// It returns nil if wsi is not initialized.
func VulkanExtensions() []string {
	if platform == None {
		return nil
	}
	// The receiver is not used.
	var w *glfw.Window
	return w.GetRequiredInstanceExtensions()
}

// window implements Window.
type window struct {
	win       *glfw.Window
	title     string
	width     int
	height    int
	closed    bool
	minimized bool
	curX      float64
	curY      float64
	raw       bool
}

func newWindow(width, height int, title string) (Window, error) {
	if title == "" {
		title = appName
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Visible, glfw.False)
	gw, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "wsi: create window")
	}
	w := &window{win: gw, title: title}
	w.width, w.height = gw.GetFramebufferSize()
	w.curX, w.curY = gw.GetCursorPos()
	if glfw.RawMouseMotionSupported() {
		gw.SetInputMode(glfw.RawMouseMotion, glfw.True)
		w.raw = true
	}
	w.setCallbacks()
	return w, nil
}

func (w *window) setCallbacks() {
	w.win.SetCloseCallback(func(*glfw.Window) {
		w.closed = true
		if windowHandler != nil {
			windowHandler.WindowClose(w)
		}
	})
	w.win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		w.width, w.height = width, height
		if windowHandler != nil {
			windowHandler.WindowResize(w, width, height)
		}
	})
	w.win.SetIconifyCallback(func(_ *glfw.Window, iconified bool) {
		w.minimized = iconified
	})
	w.win.SetFocusCallback(func(_ *glfw.Window, focused bool) {
		if keyboardHandler == nil {
			return
		}
		if focused {
			keyboardHandler.KeyboardIn(w)
		} else {
			keyboardHandler.KeyboardOut(w)
		}
	})
	w.win.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, mods glfw.ModifierKey) {
		if keyboardHandler == nil || action == glfw.Repeat {
			return
		}
		keyboardHandler.KeyboardKey(keyFrom(key), action == glfw.Press, modFrom(mods))
	})
	w.win.SetCursorEnterCallback(func(_ *glfw.Window, entered bool) {
		if pointerHandler == nil {
			return
		}
		if entered {
			pointerHandler.PointerIn(w, int(w.curX), int(w.curY))
		} else {
			pointerHandler.PointerOut(w)
		}
	})
	w.win.SetCursorPosCallback(func(_ *glfw.Window, x, y float64) {
		dx, dy := x-w.curX, y-w.curY
		w.curX, w.curY = x, y
		if pointerHandler == nil {
			return
		}
		pointerHandler.PointerMotion(int(x), int(y))
		pointerHandler.PointerDelta(dx, dy)
	})
	w.win.SetScrollCallback(func(_ *glfw.Window, xoff, yoff float64) {
		if pointerHandler != nil {
			pointerHandler.PointerWheel(xoff, yoff)
		}
	})
	w.win.SetMouseButtonCallback(func(_ *glfw.Window, btn glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
		if pointerHandler != nil {
			pointerHandler.PointerButton(buttonFrom(btn), action == glfw.Press, int(w.curX), int(w.curY))
		}
	})
}

func (w *window) Map() error {
	w.win.Show()
	return nil
}

func (w *window) Unmap() error {
	w.win.Hide()
	return nil
}

func (w *window) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return errors.Newf("wsi: invalid window size %dx%d", width, height)
	}
	w.win.SetSize(width, height)
	return nil
}

func (w *window) SetTitle(title string) error {
	w.win.SetTitle(title)
	w.title = title
	return nil
}

func (w *window) Close() {
	if w.win == nil {
		return
	}
	closeWindow(w)
	w.win.Destroy()
	w.win = nil
	w.closed = true
}

func (w *window) Width() int      { return w.width }
func (w *window) Height() int     { return w.height }
func (w *window) Title() string   { return w.title }
func (w *window) Closed() bool    { return w.closed || w.win == nil || w.win.ShouldClose() }
func (w *window) Minimized() bool { return w.minimized || w.width == 0 || w.height == 0 }

func dispatch() { glfw.PollEvents() }

func modFrom(mods glfw.ModifierKey) (m Modifier) {
	if mods&glfw.ModCapsLock != 0 {
		m |= ModCapsLock
	}
	if mods&glfw.ModShift != 0 {
		m |= ModShift
	}
	if mods&glfw.ModControl != 0 {
		m |= ModCtrl
	}
	if mods&glfw.ModAlt != 0 {
		m |= ModAlt
	}
	return
}

func buttonFrom(btn glfw.MouseButton) Button {
	switch btn {
	case glfw.MouseButtonLeft:
		return BtnLeft
	case glfw.MouseButtonRight:
		return BtnRight
	case glfw.MouseButtonMiddle:
		return BtnMiddle
	case glfw.MouseButton4:
		return BtnSide
	case glfw.MouseButton5:
		return BtnForward
	}
	return BtnUnknown
}
