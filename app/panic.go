package app

import (
	"fmt"
	"image/color"
	"strings"
	"unicode/utf8"

	"tick/hal"
	"tick/tickos/fonts/font5x7"
	"tick/tickos/kernel"

	"tinygo.org/x/tinyfont"
)

const (
	panicLineHeight = 9
	panicBaseline   = 7
)

// panicHandler logs the panic and paints it on the framebuffer. It runs
// under the kernel lock and must not call back into the kernel.
func panicHandler(h hal.HAL) func(kernel.PanicInfo) {
	return func(info kernel.PanicInfo) {
		lines := panicLines(info)
		if l := h.Logger(); l != nil {
			for _, line := range lines {
				l.WriteLineString(line)
			}
		}
		if disp := h.Display(); disp != nil {
			if fb := disp.Framebuffer(); fb != nil && fb.Buffer() != nil {
				drawPanic(fb, lines)
			}
		}
	}
}

func panicLines(info kernel.PanicInfo) []string {
	lines := []string{
		"tick panic:",
		fmt.Sprintf("task: %d", info.TaskID),
		fmt.Sprintf("tick: %d", info.Tick),
		fmt.Sprintf("panic: %v", info.Value),
	}
	if len(info.Stack) == 0 {
		return append(lines, "stack: unavailable")
	}
	lines = append(lines, "stack:")
	for _, line := range strings.Split(string(info.Stack), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func drawPanic(fb hal.Framebuffer, lines []string) {
	fb.ClearRGB(255, 255, 255)
	defer fb.Present()

	_, adv := tinyfont.LineWidth(font5x7.Font, "0")
	cols := fb.Width() / int(adv)
	if cols <= 0 {
		return
	}
	d := panicDisplay{fb: fb}
	fg := color.RGBA{A: 255}

	y := 0
	for _, line := range lines {
		for len(line) > 0 {
			if y+panicLineHeight > fb.Height() {
				return
			}
			chunk, rest := takeRunes(line, cols)
			tinyfont.WriteLine(d, font5x7.Font, 0, int16(y+panicBaseline), chunk, fg)
			y += panicLineHeight
			line = strings.TrimLeft(rest, " ")
		}
	}
}

type panicDisplay struct {
	fb hal.Framebuffer
}

func (d panicDisplay) Size() (x, y int16) {
	return int16(d.fb.Width()), int16(d.fb.Height())
}

func (d panicDisplay) SetPixel(x, y int16, c color.RGBA) {
	buf := d.fb.Buffer()
	ix, iy := int(x), int(y)
	if ix < 0 || ix >= d.fb.Width() || iy < 0 || iy >= d.fb.Height() {
		return
	}
	pixel := uint16(c.R>>3)<<11 | uint16(c.G>>2)<<5 | uint16(c.B>>3)
	off := iy*d.fb.StrideBytes() + ix*2
	if off+1 >= len(buf) {
		return
	}
	buf[off] = byte(pixel)
	buf[off+1] = byte(pixel >> 8)
}

func (d panicDisplay) Display() error { return nil }

// takeRunes splits s after at most n runes.
func takeRunes(s string, n int) (prefix, rest string) {
	if n <= 0 {
		return "", s
	}
	i := 0
	for count := 0; i < len(s) && count < n; count++ {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return s[:i], s[i:]
}
