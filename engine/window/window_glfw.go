package window

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
)

var errNotOpen = errors.New("window is not open")

// glfwHandle is the GLFW side of an engineWindow.
type glfwHandle struct {
	win     *glfw.Window
	closing bool
}

// openGLFW initializes GLFW on the calling OS thread and opens a window without a client API.
// The thread stays locked until closeGLFW.
func openGLFW(w *engineWindow) error {
	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		runtime.UnlockOSThread()
		return fmt.Errorf("glfw init: %w", err)
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	win, err := glfw.CreateWindow(w.width, w.height, w.title, nil, nil)
	if err != nil {
		glfw.Terminate()
		runtime.UnlockOSThread()
		return fmt.Errorf("glfw create window: %w", err)
	}
	win.SetSizeLimits(w.minWidth, w.minHeight, w.maxWidth, w.maxHeight)

	h := &glfwHandle{win: win}
	win.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		if action != glfw.Press {
			return
		}
		if key == glfw.KeyEscape {
			h.closing = true
			win.SetShouldClose(true)
			return
		}
		if w.onKeyDown != nil {
			w.onKeyDown(uint32(key))
		}
	})
	// pixels, not screen coordinates
	win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		w.resized(width, height)
	})

	w.width, w.height = win.GetFramebufferSize()
	w.handle = h
	return nil
}

func (h *glfwHandle) alive() bool {
	return h != nil && h.win != nil && !h.closing && !h.win.ShouldClose()
}

func (h *glfwHandle) poll() bool {
	glfw.PollEvents()
	return h.alive()
}

func (h *glfwHandle) close() error {
	if h == nil || h.win == nil {
		return errNotOpen
	}
	h.closing = true
	h.win.Destroy()
	h.win = nil
	glfw.Terminate()
	runtime.UnlockOSThread()
	return nil
}
