package app

import (
	"testing"

	"tick/hal"
	"tick/tickos/kernel"
)

type testFB struct {
	w, h     int
	buf      []byte
	presents int
}

func (f *testFB) Width() int              { return f.w }
func (f *testFB) Height() int             { return f.h }
func (f *testFB) Format() hal.PixelFormat { return hal.PixelFormatRGB565 }
func (f *testFB) StrideBytes() int        { return f.w * 2 }
func (f *testFB) Buffer() []byte          { return f.buf }
func (f *testFB) Present() error          { f.presents++; return nil }

func (f *testFB) ClearRGB(r, g, b uint8) {
	for i := range f.buf {
		f.buf[i] = 0xff
	}
}

func (f *testFB) dark() int {
	n := 0
	for i := 0; i < len(f.buf); i += 2 {
		if f.buf[i] == 0 && f.buf[i+1] == 0 {
			n++
		}
	}
	return n
}

type fbDisplay struct{ fb hal.Framebuffer }

func (d fbDisplay) Framebuffer() hal.Framebuffer { return d.fb }

type panicHAL struct {
	*testHAL
	fb *testFB
}

func (h panicHAL) Display() hal.Display { return fbDisplay{fb: h.fb} }

func TestPanicLines(t *testing.T) {
	lines := panicLines(kernel.PanicInfo{TaskID: 2, Tick: 17, Value: "boom", Stack: []byte("a\n\nb\n")})
	want := []string{"tick panic:", "task: 2", "tick: 17", "panic: boom", "stack:", "a", "b"}
	if len(lines) != len(want) {
		t.Fatalf("panicLines() = %q, want %q", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("panicLines()[%d] = %q, want %q", i, lines[i], want[i])
		}
	}

	lines = panicLines(kernel.PanicInfo{Value: "x"})
	if last := lines[len(lines)-1]; last != "stack: unavailable" {
		t.Fatalf("last line = %q", last)
	}
}

func TestPanicHandlerLogsAndPaints(t *testing.T) {
	fb := &testFB{w: 64, h: 32, buf: make([]byte, 64*32*2)}
	h := panicHAL{testHAL: newTestHAL(), fb: fb}

	panicHandler(h)(kernel.PanicInfo{TaskID: 1, Value: "boom"})

	if len(h.log.lines) != 5 {
		t.Fatalf("logged %d lines, want 5", len(h.log.lines))
	}
	if fb.presents != 1 {
		t.Fatalf("presents = %d, want 1", fb.presents)
	}
	if fb.dark() == 0 {
		t.Fatal("no text drawn")
	}
}

func TestTakeRunes(t *testing.T) {
	for _, tc := range []struct {
		s          string
		n          int
		head, tail string
	}{
		{"abcdef", 4, "abcd", "ef"},
		{"ab", 4, "ab", ""},
		{"äöü", 2, "äö", "ü"},
		{"abc", 0, "", "abc"},
	} {
		head, tail := takeRunes(tc.s, tc.n)
		if head != tc.head || tail != tc.tail {
			t.Fatalf("takeRunes(%q, %d) = %q, %q; want %q, %q", tc.s, tc.n, head, tail, tc.head, tc.tail)
		}
	}
}
