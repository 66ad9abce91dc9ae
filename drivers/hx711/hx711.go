// Package hx711 provides a driver for the HX711 24-bit load-cell ADC.
// The chip speaks a two-wire bit-serial protocol: the driver owns the clock
// line (idle low) and reads the chip-owned data line, which doubles as the
// "conversion ready" signal (low = ready).
//
// Every operation that touches the lines is serialised by one internal lock,
// so a single Device may be shared between goroutines. Sharing a pin pair
// between two Devices is not supported.
//
// The driver blocks until the chip reports a conversion; there is no timeout.
// That mirrors the hardware contract (the chip always becomes ready while
// powered and wired correctly). Callers needing a bound must wrap calls in
// their own timeout.
package hx711

import (
	"errors"
	"sync"
	"time"

	"loadcell-go/x/mathx"
)

// Errors returned by the driver.
var (
	ErrInvalidGain   = errors.New("hx711: gain must be one of 128, 64, 32")
	ErrZeroReference = errors.New("hx711: reference weight is zero")
	ErrZeroScale     = errors.New("hx711: scale factor is zero")
	ErrClosed        = errors.New("hx711: device closed")
)

// DefaultSamples is the frame count used by Tare and Calibrate when the
// caller passes samples <= 0.
const DefaultSamples = 10

// powerDownHold is the minimum time the clock line must stay high for the
// chip to latch its low-power state (datasheet: 60 µs).
const powerDownHold = 60 * time.Microsecond

// Pin is the GPIO contract the driver needs from the platform. It matches
// the pin handles our RP2040 and Linux providers hand out; tests inject
// fakes.
type Pin interface {
	ConfigureInput() error
	ConfigureOutput(initial bool) error
	Set(level bool)
	Get() bool
}

// Config controls non-hardware behaviour. All fields are optional.
type Config struct {
	// Gain latched at start-up. Zero defaults to Gain128.
	Gain Gain
	// ReadyPoll is the sleep between data-ready polls. Default 10 ms.
	ReadyPoll time.Duration
	// Sleep is the delay primitive. Default time.Sleep. Injected by tests
	// and by hosts with a better-than-millisecond timer.
	Sleep func(time.Duration)
}

// Device is one HX711 on a dedicated pin pair.
type Device struct {
	dout Pin
	sck  Pin
	cfg  Config

	mu     sync.Mutex // serialises all line activity and device state
	gain   Gain
	offset int32
	scale  float64
	asleep bool
	closed bool
}

// New wires up the two signal lines and performs one throwaway conversion so
// the chip flushes its indeterminate power-on frame and latches cfg.Gain.
func New(dout, sck Pin, cfg Config) (*Device, error) {
	if cfg.Gain == 0 {
		cfg.Gain = Gain128
	}
	if !cfg.Gain.Valid() {
		return nil, ErrInvalidGain
	}
	if cfg.ReadyPoll <= 0 {
		cfg.ReadyPoll = 10 * time.Millisecond
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}

	d := &Device{
		dout:  dout,
		sck:   sck,
		cfg:   cfg,
		gain:  cfg.Gain,
		scale: 1,
	}
	if err := d.dout.ConfigureInput(); err != nil {
		return nil, err
	}
	if err := d.sck.ConfigureOutput(false); err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.readFrame()
	d.mu.Unlock()
	return d, nil
}

// readFrame performs one full protocol exchange: wait for the data line to go
// low, clock out 24 bits MSB first, then issue the trailing pulses that select
// the channel/gain for the next conversion. The accumulated pattern is
// reinterpreted as two's complement. Callers hold d.mu.
//
// No delay is inserted between the clock edges; line-toggle latency keeps the
// high time inside the chip's ~50 µs window on SBC-class GPIO. A platform
// fast enough to violate that must stretch pulses in its Pin implementation.
func (d *Device) readFrame() int32 {
	for d.dout.Get() {
		d.cfg.Sleep(d.cfg.ReadyPoll)
	}

	var raw uint32
	for i := 0; i < 24; i++ {
		d.sck.Set(true)
		d.sck.Set(false)
		raw <<= 1
		if d.dout.Get() {
			raw |= 1
		}
	}

	for i := 0; i < d.gain.pulses(); i++ {
		d.sck.Set(true)
		d.sck.Set(false)
	}

	return signExtend24(raw)
}

// signExtend24 reinterprets a 24-bit pattern as two's complement.
func signExtend24(v uint32) int32 {
	if v&0x800000 != 0 {
		return int32(v) - 0x1000000
	}
	return int32(v)
}

// wake leaves power-down if the chip is in it. It runs as a complete lock
// cycle of its own, so an operation about to sample never holds the lock
// across the wake read (no re-entrant acquisition, and a concurrent caller
// can slip in between wake and sample without harm).
func (d *Device) wake() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if !d.asleep {
		return nil
	}
	d.sck.Set(false)
	d.readFrame() // throwaway conversion resynchronises the chip
	d.asleep = false
	return nil
}

// Tare samples the unloaded cell and stores the median of the collected
// frames as the zero offset. The median rather than the mean, so one
// transient spike cannot skew the zero point. Wakes the chip if needed.
// Returns the new offset.
func (d *Device) Tare(samples int) (int32, error) {
	if samples <= 0 {
		samples = DefaultSamples
	}
	if err := d.wake(); err != nil {
		return 0, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, ErrClosed
	}
	vals := make([]int32, samples)
	for i := range vals {
		vals[i] = d.readFrame()
	}
	d.offset = int32(mathx.Median(vals))
	return d.offset, nil
}

// Calibrate derives the scale factor from a reference mass sitting on the
// cell: median of the offset-adjusted frames divided by referenceWeight.
// Tare first. Wakes the chip if needed. Returns the new scale.
func (d *Device) Calibrate(referenceWeight float64, samples int) (float64, error) {
	if referenceWeight == 0 {
		return 0, ErrZeroReference
	}
	if samples <= 0 {
		samples = DefaultSamples
	}
	if err := d.wake(); err != nil {
		return 0, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, ErrClosed
	}
	vals := make([]int32, samples)
	for i := range vals {
		vals[i] = d.readFrame() - d.offset
	}
	d.scale = mathx.Median(vals) / referenceWeight
	return d.scale, nil
}

// Weight takes one conversion and applies the linear calibration model
// (raw - offset) / scale. Wakes the chip if needed.
func (d *Device) Weight() (float64, error) {
	if err := d.wake(); err != nil {
		return 0, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, ErrClosed
	}
	return float64(d.readFrame()-d.offset) / d.scale, nil
}

// Raw takes one conversion and returns it uncalibrated. Wakes the chip if
// needed.
func (d *Device) Raw() (int32, error) {
	if err := d.wake(); err != nil {
		return 0, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, ErrClosed
	}
	return d.readFrame(), nil
}

// Gain reports the configured gain. Reading it wakes a powered-down chip;
// the wake consumes one conversion. This side effect is part of the
// contract, not an accident.
func (d *Device) Gain() (Gain, error) {
	if err := d.wake(); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gain, nil
}

// SetGain switches amplifier gain and input channel. The new setting is
// latched by one throwaway conversion, which also flushes the frame still
// clocked for the old setting. Setting the current value issues no pulses.
func (d *Device) SetGain(g Gain) error {
	if !g.Valid() {
		return ErrInvalidGain
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	if g == d.gain {
		d.mu.Unlock()
		return nil
	}
	d.gain = g
	d.mu.Unlock()

	if err := d.wake(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	d.readFrame()
	return nil
}

// PowerDown reports whether the chip is in its low-power state.
func (d *Device) PowerDown() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.asleep
}

// SetPowerDown moves the chip in or out of its low-power state. Entering:
// clock low then high, held for at least 60 µs. Leaving: clock low plus one
// throwaway conversion. Setting the current state is a no-op.
func (d *Device) SetPowerDown(down bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if down == d.asleep {
		return nil
	}
	if down {
		d.sck.Set(false)
		d.sck.Set(true)
		d.cfg.Sleep(powerDownHold)
	} else {
		d.sck.Set(false)
		d.readFrame()
	}
	d.asleep = down
	return nil
}

// Offset returns the zero offset in raw units.
func (d *Device) Offset() int32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.offset
}

// SetOffset overrides the zero offset. Useful when restoring a calibration
// stored elsewhere; the driver itself persists nothing.
func (d *Device) SetOffset(v int32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.offset = v
}

// Scale returns the scale factor in raw units per physical unit.
func (d *Device) Scale() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scale
}

// SetScale overrides the scale factor, for restoring a stored calibration.
// Zero is rejected so Weight can never divide by it.
func (d *Device) SetScale(v float64) error {
	if v == 0 {
		return ErrZeroScale
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scale = v
	return nil
}

// Close releases both pins back to inputs. Any later operation returns
// ErrClosed. Close is idempotent; calling it while another operation is in
// flight waits for that operation to finish.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if err := d.dout.ConfigureInput(); err != nil {
		return err
	}
	return d.sck.ConfigureInput()
}
