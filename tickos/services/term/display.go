package term

import (
	"image/color"

	"tick/hal"

	"tinygo.org/x/drivers"
)

// fbDisplay adapts an RGB565 hal.Framebuffer to tinyterm.Displayer.
type fbDisplay struct {
	fb     hal.Framebuffer
	buf    []byte
	w, h   int
	stride int
}

func newFBDisplay(fb hal.Framebuffer) *fbDisplay {
	if fb == nil || fb.Format() != hal.PixelFormatRGB565 || fb.Buffer() == nil {
		return nil
	}
	return &fbDisplay{
		fb:     fb,
		buf:    fb.Buffer(),
		w:      fb.Width(),
		h:      fb.Height(),
		stride: fb.StrideBytes(),
	}
}

func (d *fbDisplay) Size() (x, y int16) { return int16(d.w), int16(d.h) }

func (d *fbDisplay) SetPixel(x, y int16, c color.RGBA) {
	ix, iy := int(x), int(y)
	if ix < 0 || ix >= d.w || iy < 0 || iy >= d.h {
		return
	}
	d.put(iy*d.stride+ix*2, rgb565(c))
}

func (d *fbDisplay) put(off int, pixel uint16) {
	if off+1 >= len(d.buf) {
		return
	}
	d.buf[off] = byte(pixel)
	d.buf[off+1] = byte(pixel >> 8)
}

func (d *fbDisplay) Display() error { return d.fb.Present() }

// ScrollUp moves the picture up by lines rows and clears the exposed band.
func (d *fbDisplay) ScrollUp(lines int16, bg color.RGBA) error {
	n := int(lines)
	if n <= 0 {
		return nil
	}
	if n >= d.h {
		return d.FillRectangle(0, 0, int16(d.w), int16(d.h), bg)
	}
	copy(d.buf, d.buf[n*d.stride:d.h*d.stride])
	return d.FillRectangle(0, int16(d.h-n), int16(d.w), int16(n), bg)
}

func (d *fbDisplay) FillRectangle(x, y, width, height int16, c color.RGBA) error {
	x0, x1 := clamp(int(x), 0, d.w), clamp(int(x)+int(width), 0, d.w)
	y0, y1 := clamp(int(y), 0, d.h), clamp(int(y)+int(height), 0, d.h)
	pixel := rgb565(c)
	for py := y0; py < y1; py++ {
		for px := x0; px < x1; px++ {
			d.put(py*d.stride+px*2, pixel)
		}
	}
	return nil
}

// SetScroll is a no-op: the terminal runs with software scrolling.
func (d *fbDisplay) SetScroll(line int16) {}

func (d *fbDisplay) SetRotation(rotation drivers.Rotation) error { return nil }

func rgb565(c color.RGBA) uint16 {
	return uint16(c.R>>3)<<11 | uint16(c.G>>2)<<5 | uint16(c.B>>3)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
