package window

// Key codes passed to the key down callback. They are GLFW key codes, which are ASCII for
// printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeySpace  = 32  // Spacebar (ASCII)
	KeyP      = 80  // P key (ASCII)
	KeyT      = 84  // T key (ASCII)
	KeyEscape = 256 // Escape key (GLFW), handled by the window itself
)
