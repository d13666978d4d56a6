package term

import (
	"image/color"
	"testing"

	"tick/hal"
)

type testFB struct {
	w, h     int
	buf      []byte
	presents int
}

func newTestFB(w, h int) *testFB { return &testFB{w: w, h: h, buf: make([]byte, w*h*2)} }

func (f *testFB) Width() int              { return f.w }
func (f *testFB) Height() int             { return f.h }
func (f *testFB) Format() hal.PixelFormat { return hal.PixelFormatRGB565 }
func (f *testFB) StrideBytes() int        { return f.w * 2 }
func (f *testFB) Buffer() []byte          { return f.buf }
func (f *testFB) Present() error          { f.presents++; return nil }

func (f *testFB) ClearRGB(r, g, b uint8) {
	for i := range f.buf {
		f.buf[i] = 0
	}
}

func (f *testFB) lit(y0, y1 int) int {
	n := 0
	for y := y0; y < y1; y++ {
		for x := 0; x < f.w; x++ {
			off := y*f.w*2 + x*2
			if f.buf[off] != 0 || f.buf[off+1] != 0 {
				n++
			}
		}
	}
	return n
}

type testDisplay struct{ fb hal.Framebuffer }

func (d testDisplay) Framebuffer() hal.Framebuffer { return d.fb }

func TestConsoleDrawsText(t *testing.T) {
	fb := newTestFB(120, 45)
	c := New(testDisplay{fb: fb})

	if _, err := c.Write([]byte("short task\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if fb.lit(0, 9) == 0 {
		t.Fatal("first text row is blank")
	}
	if fb.lit(9, 45) != 0 {
		t.Fatal("pixels below the first row")
	}
	if fb.presents < 2 {
		t.Fatalf("presents = %d, want a present per write", fb.presents)
	}
	if c.Bytes() != 11 {
		t.Fatalf("Bytes() = %d, want 11", c.Bytes())
	}
}

func TestConsoleScrolls(t *testing.T) {
	fb := newTestFB(120, 45)
	c := New(testDisplay{fb: fb})

	for i := 0; i < 20; i++ {
		_, _ = c.Write([]byte("long task\n"))
	}
	// After scrolling, the cursor row at the bottom is blank and text
	// fills the rows above it.
	if fb.lit(0, 9) == 0 {
		t.Fatal("top row blank after scrolling")
	}
}

func TestConsoleWithoutFramebuffer(t *testing.T) {
	c := New(nil)
	if n, err := c.Write([]byte("x")); n != 1 || err != nil {
		t.Fatalf("Write() = %d, %v", n, err)
	}
	c.Reset()
}

func TestFillRectangleClips(t *testing.T) {
	fb := newTestFB(4, 4)
	d := newFBDisplay(fb)
	_ = d.FillRectangle(-2, -2, 4, 4, color.RGBA{R: 0xff, A: 0xff})
	if got := fb.lit(0, 4); got != 4 {
		t.Fatalf("lit pixels = %d, want 4", got)
	}
	if fb.buf[0] != 0x00 || fb.buf[1] != 0xf8 {
		t.Fatalf("pixel = %x, want 00f8", fb.buf[:2])
	}
}

func TestScrollUp(t *testing.T) {
	fb := newTestFB(2, 3)
	d := newFBDisplay(fb)
	d.SetPixel(0, 2, color.RGBA{G: 0xff, A: 0xff})

	_ = d.ScrollUp(1, color.RGBA{})
	if fb.lit(1, 2) != 1 || fb.lit(2, 3) != 0 {
		t.Fatalf("scroll moved %d/%d pixels", fb.lit(1, 2), fb.lit(2, 3))
	}
}

func TestConsoleHonorsColorSequences(t *testing.T) {
	fb := newTestFB(120, 45)
	c := New(testDisplay{fb: fb})

	_, _ = c.Write([]byte("\x1b[31m|\x1b[0m|\n"))

	// '|' lights column 2 of its cell.
	red := uint16(fb.buf[2*2]) | uint16(fb.buf[2*2+1])<<8
	if red != 0xc800 {
		t.Fatalf("red glyph pixel = %#04x, want 0xc800", red)
	}
	off := (6 + 2) * 2
	white := uint16(fb.buf[off]) | uint16(fb.buf[off+1])<<8
	if white != 0xe73c {
		t.Fatalf("default glyph pixel = %#04x, want 0xe73c", white)
	}
}
