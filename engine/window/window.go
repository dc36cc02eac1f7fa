package window

import (
	"fmt"
)

// Window is the desktop window an engine run may be attached to. The engine polls it once per
// render frame and stops when it closes. Escape closes it.
//
// A Window belongs to the goroutine that opened it.
type Window interface {
	// SetResizeCallback registers fn to receive the framebuffer size in pixels after every resize.
	SetResizeCallback(fn func(width, height int))

	// SetKeyDownCallback registers fn to receive the GLFW key code of every key press except escape.
	SetKeyDownCallback(fn func(keyCode uint32))

	// PollEvents dispatches queued input and resize events and reports whether the window is
	// still open. It never blocks.
	PollEvents() bool

	// IsRunning reports whether the window is open and no close was requested.
	IsRunning() bool

	// Close destroys the window. Closing a window that is not open returns an error.
	Close() error

	// Width is the framebuffer width in pixels.
	Width() int

	// Height is the framebuffer height in pixels.
	Height() int

	// Aspect is Width over Height, or 1 while either is zero.
	Aspect() float32
}

type engineWindow struct {
	title string

	minWidth, minHeight int
	maxWidth, maxHeight int
	width, height       int

	// nil until the platform window is open, and in tests
	handle *glfwHandle

	onResize  func(width, height int)
	onKeyDown func(keyCode uint32)
}

var _ Window = &engineWindow{}

// NewWindow opens a Window configured by options on the calling goroutine, which must be the
// main thread on most platforms.
//
// Parameters:
//   - options: window builder options, applied over a 1280x720 window titled "oxy-core"
//
// Returns:
//   - Window: the open window
//   - error: wraps the GLFW failure when the window could not be opened
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := newEngineWindow(options...)
	if err := openGLFW(w); err != nil {
		return nil, fmt.Errorf("open window: %w", err)
	}
	return w, nil
}

func newEngineWindow(options ...WindowBuilderOption) *engineWindow {
	w := &engineWindow{
		title:     "oxy-core",
		maxWidth:  1600,
		maxHeight: 1200,
		minWidth:  600,
		minHeight: 200,
		width:     1280,
		height:    720,
	}
	for _, opt := range options {
		opt(w)
	}
	w.width = min(max(w.width, w.minWidth), w.maxWidth)
	w.height = min(max(w.height, w.minHeight), w.maxHeight)
	return w
}

func (w *engineWindow) SetResizeCallback(fn func(width, height int)) {
	w.onResize = fn
}

func (w *engineWindow) SetKeyDownCallback(fn func(keyCode uint32)) {
	w.onKeyDown = fn
}

func (w *engineWindow) PollEvents() bool {
	if !w.handle.alive() {
		return false
	}
	return w.handle.poll()
}

func (w *engineWindow) IsRunning() bool {
	return w.handle.alive()
}

func (w *engineWindow) Close() error {
	return w.handle.close()
}

func (w *engineWindow) Width() int {
	return w.width
}

func (w *engineWindow) Height() int {
	return w.height
}

func (w *engineWindow) Aspect() float32 {
	if w.width <= 0 || w.height <= 0 {
		return 1
	}
	return float32(w.width) / float32(w.height)
}

// resized is called from the GLFW framebuffer size callback.
func (w *engineWindow) resized(width, height int) {
	w.width = width
	w.height = height
	if w.onResize != nil {
		w.onResize(width, height)
	}
}
