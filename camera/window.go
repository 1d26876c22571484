package camera

import (
	"fmt"
	"image"
	"time"

	"gocv.io/x/gocv"
)

// DefaultTitle is the title of the preview window.
const DefaultTitle = "Face Capture - Press ESC to exit"

// Window shows the annotated frames and reads the keyboard.
// It implements the facecap.Display interface.
type Window struct {
	win *gocv.Window
}

// NewWindow opens a new preview window.
func NewWindow(title string) *Window {
	if title == "" {
		title = DefaultTitle
	}
	return &Window{win: gocv.NewWindow(title)}
}

// Show displays the image in the window.
func (w *Window) Show(img image.Image) error {
	if w.win == nil {
		return fmt.Errorf("window is closed")
	}
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return err
	}
	defer mat.Close()
	w.win.IMShow(mat)
	return nil
}

// WaitKey processes the window events for the given delay and
// returns the code of the pressed key or -1 if none was pressed.
func (w *Window) WaitKey(delay time.Duration) int {
	if w.win == nil {
		time.Sleep(delay)
		return -1
	}
	ms := int(delay / time.Millisecond)
	if ms < 1 {
		ms = 1
	}
	return keyCode(w.win.WaitKey(ms))
}

// Close destroys the window. It is safe to call it more than once.
func (w *Window) Close() error {
	if w.win == nil {
		return nil
	}
	err := w.win.Close()
	w.win = nil
	return err
}

// keyCode keeps the low byte of the key, as some backends set modifier bits.
func keyCode(key int) int {
	if key < 0 {
		return -1
	}
	return key & 0xff
}
