package hal

import (
	"sync"

	"github.com/pkg/errors"
)

// GPIOMode selects whether a pin is an input or output.
type GPIOMode uint8

const (
	GPIOModeInput GPIOMode = iota
	GPIOModeOutput
)

// GPIOPull selects the pull resistor configuration.
type GPIOPull uint8

const (
	GPIOPullNone GPIOPull = iota
	GPIOPullUp
	GPIOPullDown
)

// GPIOCaps declares what operations a pin supports.
type GPIOCaps uint8

const (
	GPIOCapInput GPIOCaps = 1 << iota
	GPIOCapOutput
	GPIOCapPullUp
	GPIOCapPullDown
)

// ErrPinUnsupported is returned when a pin cannot perform the requested operation.
var ErrPinUnsupported = errors.New("gpio: unsupported")

// GPIO provides access to general-purpose IO pins.
//
// Implementations may return nil if GPIO is unsupported.
type GPIO interface {
	PinCount() int
	Pin(id int) GPIOPin
	Lookup(name string) GPIOPin
}

// GPIOPin is a single digital IO pin.
type GPIOPin interface {
	Name() string
	Caps() GPIOCaps
	Configure(mode GPIOMode, pull GPIOPull) error
	Read() (level bool, err error)
	Write(level bool) error
}

// EdgeCounter is implemented by pins that count level changes. Logic
// analyser style checks use it to verify trace pins.
type EdgeCounter interface {
	Edges() uint64
}

type nullGPIO struct{}

func (nullGPIO) PinCount() int              { return 0 }
func (nullGPIO) Pin(id int) GPIOPin         { return nil }
func (nullGPIO) Lookup(name string) GPIOPin { return nil }

type virtualGPIO struct {
	pins []GPIOPin
}

func newVirtualGPIO(pins []GPIOPin) GPIO {
	if len(pins) == 0 {
		return nullGPIO{}
	}
	return &virtualGPIO{pins: pins}
}

func (g *virtualGPIO) PinCount() int {
	if g == nil {
		return 0
	}
	return len(g.pins)
}

func (g *virtualGPIO) Pin(id int) GPIOPin {
	if g == nil || id < 0 || id >= len(g.pins) {
		return nil
	}
	return g.pins[id]
}

func (g *virtualGPIO) Lookup(name string) GPIOPin {
	if g == nil {
		return nil
	}
	for _, p := range g.pins {
		if p != nil && p.Name() == name {
			return p
		}
	}
	return nil
}

// virtualPin keeps its level in memory. Trace pins are virtual pins.
type virtualPin struct {
	mu    sync.Mutex
	name  string
	caps  GPIOCaps
	mode  GPIOMode
	pull  GPIOPull
	level bool
	edges uint64
}

func newVirtualPin(name string, caps GPIOCaps) *virtualPin {
	return &virtualPin{
		name: name,
		caps: caps,
		mode: GPIOModeInput,
		pull: GPIOPullNone,
	}
}

func (p *virtualPin) Name() string   { return p.name }
func (p *virtualPin) Caps() GPIOCaps { return p.caps }

func (p *virtualPin) Configure(mode GPIOMode, pull GPIOPull) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := checkConfig(p.name, p.caps, mode, pull); err != nil {
		return err
	}
	p.mode = mode
	p.pull = pull
	return nil
}

func (p *virtualPin) Read() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level, nil
}

func (p *virtualPin) Write(level bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mode != GPIOModeOutput {
		return errors.Wrapf(ErrPinUnsupported, "pin %s: not in output mode", p.name)
	}
	if p.level != level {
		p.edges++
	}
	p.level = level
	return nil
}

func (p *virtualPin) Edges() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.edges
}

func checkConfig(name string, caps GPIOCaps, mode GPIOMode, pull GPIOPull) error {
	switch mode {
	case GPIOModeInput:
		if caps&GPIOCapInput == 0 {
			return errors.Wrapf(ErrPinUnsupported, "pin %s: input", name)
		}
	case GPIOModeOutput:
		if caps&GPIOCapOutput == 0 {
			return errors.Wrapf(ErrPinUnsupported, "pin %s: output", name)
		}
	default:
		return errors.Wrapf(ErrPinUnsupported, "pin %s: mode %d", name, mode)
	}

	switch pull {
	case GPIOPullNone:
	case GPIOPullUp:
		if caps&GPIOCapPullUp == 0 {
			return errors.Wrapf(ErrPinUnsupported, "pin %s: pull-up", name)
		}
	case GPIOPullDown:
		if caps&GPIOCapPullDown == 0 {
			return errors.Wrapf(ErrPinUnsupported, "pin %s: pull-down", name)
		}
	default:
		return errors.Wrapf(ErrPinUnsupported, "pin %s: pull %d", name, pull)
	}
	return nil
}

// ledPin exposes the board LED as an output-only pin.
type ledPin struct {
	mu    sync.Mutex
	led   LED
	name  string
	level bool
	edges uint64
}

func newLEDPin(name string, led LED) GPIOPin {
	if led == nil {
		return nil
	}
	return &ledPin{led: led, name: name}
}

func (p *ledPin) Name() string   { return p.name }
func (p *ledPin) Caps() GPIOCaps { return GPIOCapOutput }

func (p *ledPin) Configure(mode GPIOMode, pull GPIOPull) error {
	return checkConfig(p.name, GPIOCapOutput, mode, pull)
}

func (p *ledPin) Read() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level, nil
}

func (p *ledPin) Write(level bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.level != level {
		p.edges++
	}
	p.level = level
	if level {
		p.led.High()
	} else {
		p.led.Low()
	}
	return nil
}

func (p *ledPin) Edges() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.edges
}

// tracePins returns the output pins used to observe critical sections.
func tracePins(n int) []GPIOPin {
	pins := make([]GPIOPin, 0, n)
	for i := 0; i < n; i++ {
		pins = append(pins, newVirtualPin(traceName(i), GPIOCapInput|GPIOCapOutput))
	}
	return pins
}

func traceName(i int) string {
	return "TRACE" + string(rune('1'+i))
}
