package hal

import "github.com/pkg/errors"

// Logger writes newline-delimited log lines.
type Logger interface {
	WriteLineString(s string)
	WriteLineBytes(b []byte)
}

// LED is a minimal output pin abstraction.
type LED interface {
	High()
	Low()
}

var (
	ErrNotImplemented = errors.New("not implemented")

	// ErrNotReady reports that the serial line has not finished the previous
	// write. The caller may retry later.
	ErrNotReady = errors.New("serial: write not ready")
)

// PixelFormat defines the framebuffer pixel encoding.
type PixelFormat uint8

const (
	// PixelFormatRGB565 is 16bpp: rrrrrggggggbbbbb.
	PixelFormatRGB565 PixelFormat = iota + 1
)

// Framebuffer is a simple pixel buffer plus a "present" hook.
type Framebuffer interface {
	Width() int
	Height() int
	Format() PixelFormat
	StrideBytes() int
	Buffer() []byte
	ClearRGB(r, g, b uint8)
	Present() error
}

// Display provides access to the framebuffer (if available).
type Display interface {
	Framebuffer() Framebuffer
}

// Time provides a base tick stream.
//
// Sequence numbers start at 1 and count elapsed ticks. The tick duration
// is platform-defined.
type Time interface {
	Ticks() <-chan uint64
}

// Serial is the byte output channel shared by the workload tasks.
//
// Write either accepts all of p or fails with ErrNotReady while a previous
// write is still in flight.
type Serial interface {
	Write(p []byte) (int, error)
}

// Options configures a HAL instance.
type Options struct {
	// TickRate is the number of kernel ticks per second. Zero means 1000.
	TickRate int
	// BytesPerTick is the serial drain rate. Zero means unlimited.
	BytesPerTick int
}

func (o Options) tickRate() int {
	if o.TickRate <= 0 {
		return 1000
	}
	return o.TickRate
}

// HAL provides the only contact point between the kernel and the outside world.
type HAL interface {
	Logger() Logger
	LED() LED
	GPIO() GPIO
	Display() Display
	Time() Time
	Serial() *UART
}
