//go:build !tinygo

package hal

import (
	"fmt"
	"io"
	"os"
	"sync"
)

const tracePinCount = 4

type hostHAL struct {
	logger *hostLogger
	led    *hostLED
	gpio   GPIO
	fb     *memFramebuffer
	t      *hostTime
	uart   *UART
}

// New returns a host HAL implementation. Log lines and serial output both
// go to stdout.
func New(opts Options) HAL {
	return newHost(opts, os.Stdout)
}

// NewSim returns a host HAL whose log and serial output go to w. Its time
// source never ticks; the caller drives the kernel directly.
func NewSim(w io.Writer) HAL {
	return newHost(Options{}, w)
}

func newHost(opts Options, w io.Writer) *hostHAL {
	logger := &hostLogger{w: w}
	led := &hostLED{logger: logger}
	pins := append([]GPIOPin{newLEDPin("LED", led)}, tracePins(tracePinCount)...)
	return &hostHAL{
		logger: logger,
		led:    led,
		gpio:   newVirtualGPIO(pins),
		fb:     newMemFramebuffer(320, 240),
		t:      newHostTime(opts.tickRate()),
		uart:   NewUART(&lockedWriter{mu: &logger.mu, w: w}, opts.BytesPerTick),
	}
}

func (h *hostHAL) Logger() Logger   { return h.logger }
func (h *hostHAL) LED() LED         { return h.led }
func (h *hostHAL) GPIO() GPIO       { return h.gpio }
func (h *hostHAL) Display() Display { return memDisplay{fb: h.fb} }
func (h *hostHAL) Time() Time       { return h.t }
func (h *hostHAL) Serial() *UART    { return h.uart }

type hostLogger struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *hostLogger) WriteLineString(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, s)
}

func (l *hostLogger) WriteLineBytes(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Write(b)
	l.w.Write([]byte{'\n'})
}

// lockedWriter shares the logger lock so serial bytes and log lines do not
// interleave mid-line.
type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}

type hostLED struct {
	mu     sync.Mutex
	on     bool
	logger *hostLogger
}

func (l *hostLED) High() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.on = true
	l.logger.WriteLineString("led: HIGH")
}

func (l *hostLED) Low() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.on = false
	l.logger.WriteLineString("led: LOW")
}
