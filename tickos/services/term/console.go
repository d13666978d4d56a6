package term

import (
	"sync"

	"tick/hal"
	"tick/tickos/fonts/font5x7"

	"tinygo.org/x/tinyterm"
)

// Console renders the serial line on the framebuffer through tinyterm.
//
// It is an io.Writer meant to be attached as a UART sink. Without a
// usable framebuffer every write is accepted and discarded.
type Console struct {
	mu    sync.Mutex
	fb    hal.Framebuffer
	d     *fbDisplay
	t     *tinyterm.Terminal
	bytes uint64
}

// New returns a console drawing on disp.
func New(disp hal.Display) *Console {
	c := &Console{}
	if disp != nil {
		c.fb = disp.Framebuffer()
		c.d = newFBDisplay(c.fb)
	}
	c.reset()
	return c
}

func (c *Console) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bytes += uint64(len(p))
	if c.t == nil {
		return len(p), nil
	}
	_, _ = c.t.Write(p)
	c.t.Display()
	return len(p), nil
}

// Reset clears the screen and homes the cursor.
func (c *Console) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

// Bytes returns the number of bytes written so far.
func (c *Console) Bytes() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytes
}

func (c *Console) reset() {
	if c.d == nil {
		return
	}
	c.t = tinyterm.NewTerminal(c.d)
	c.t.Configure(&tinyterm.Config{
		Font:              font5x7.Font,
		FontHeight:        9,
		FontOffset:        7,
		UseSoftwareScroll: true,
	})
	c.fb.ClearRGB(0, 0, 0)
	_ = c.fb.Present()
}
