//go:build tinygo && baremetal

package hal

import (
	"machine"
)

type tinyGoHAL struct {
	logger *uartLogger
	led    *pinLED
	gpio   GPIO
	fb     Framebuffer
	t      *tinyGoTime
	uart   *UART
}

// New returns a Pico (RP2040/RP2350) HAL implementation.
//
// UART: UART0 on GP0 (TX) / GP1 (RX), 115200 8N1. Log lines and the
// workload output share the line. Trace pins are GP2..GP5.
func New(opts Options) HAL {
	uart := machine.UART0
	uart.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.GP0,
		RX:       machine.GP1,
	})

	ledPin := machine.LED
	ledPin.Configure(machine.PinConfig{Mode: machine.PinOutput})

	led := &pinLED{pin: ledPin}
	pins := []GPIOPin{newLEDPin("LED", led)}
	for i, p := range []machine.Pin{machine.GP2, machine.GP3, machine.GP4, machine.GP5} {
		pins = append(pins, &machinePin{name: traceName(i), pin: p})
	}
	return &tinyGoHAL{
		logger: &uartLogger{uart: uart},
		led:    led,
		gpio:   newVirtualGPIO(pins),
		fb:     &stubFramebuffer{w: 320, h: 240, format: PixelFormatRGB565},
		t:      newTinyGoTime(opts.tickRate()),
		uart:   NewUART(uart, opts.BytesPerTick),
	}
}

func (h *tinyGoHAL) Logger() Logger   { return h.logger }
func (h *tinyGoHAL) LED() LED         { return h.led }
func (h *tinyGoHAL) GPIO() GPIO       { return h.gpio }
func (h *tinyGoHAL) Display() Display { return memDisplay{fb: h.fb} }
func (h *tinyGoHAL) Time() Time       { return h.t }
func (h *tinyGoHAL) Serial() *UART    { return h.uart }

// machinePin is a GPIO pin driven through the machine package.
type machinePin struct {
	name  string
	pin   machine.Pin
	mode  GPIOMode
	level bool
	edges uint64
}

func (p *machinePin) Name() string   { return p.name }
func (p *machinePin) Caps() GPIOCaps { return GPIOCapInput | GPIOCapOutput | GPIOCapPullUp | GPIOCapPullDown }

func (p *machinePin) Configure(mode GPIOMode, pull GPIOPull) error {
	if err := checkConfig(p.name, p.Caps(), mode, pull); err != nil {
		return err
	}
	cfg := machine.PinConfig{Mode: machine.PinOutput}
	if mode == GPIOModeInput {
		switch pull {
		case GPIOPullUp:
			cfg.Mode = machine.PinInputPullup
		case GPIOPullDown:
			cfg.Mode = machine.PinInputPulldown
		default:
			cfg.Mode = machine.PinInput
		}
	}
	p.pin.Configure(cfg)
	p.mode = mode
	return nil
}

func (p *machinePin) Read() (bool, error) {
	if p.mode == GPIOModeOutput {
		return p.level, nil
	}
	return p.pin.Get(), nil
}

func (p *machinePin) Write(level bool) error {
	if p.mode != GPIOModeOutput {
		return ErrPinUnsupported
	}
	if p.level != level {
		p.edges++
	}
	p.level = level
	p.pin.Set(level)
	return nil
}

func (p *machinePin) Edges() uint64 { return p.edges }
