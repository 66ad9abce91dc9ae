// Package nau7802 provides a driver for the NAU7802 24-bit load-cell ADC.
// Unlike its bit-banged siblings this part sits on I2C, but it feeds the same
// weighing pipeline: a zero offset taken from the unloaded cell and a scale
// factor derived from a reference mass, applied as (raw - offset) / scale.
//
// Offsets are averaged rather than median-filtered; the chip's own analog
// front end calibration deals with most of the noise the median would.
package nau7802

import (
	"errors"
	"sync"
	"time"

	"tinygo.org/x/drivers"
)

// Address is the chip's fixed 7-bit I2C address.
const Address = 0x2A

// DefaultSamples is the conversion count used by Tare and Calibrate when the
// caller passes samples <= 0.
const DefaultSamples = 10

// Errors returned by the driver.
var (
	ErrPowerUp       = errors.New("nau7802: power-up not ready")
	ErrCalibration   = errors.New("nau7802: AFE calibration failed")
	ErrTimeout       = errors.New("nau7802: timed out waiting for conversion")
	ErrInvalidGain   = errors.New("nau7802: gain must be a power of two, 1..128")
	ErrZeroReference = errors.New("nau7802: reference weight is zero")
)

// Config controls bring-up. All fields are optional.
type Config struct {
	// Address defaults to 0x2A if zero.
	Address uint16
	// Gain is the PGA gain: 1, 2, 4, 8, 16, 32, 64 or 128. Default 64.
	Gain int
	// ConversionWait bounds the poll for a ready conversion. Default 1 s
	// (ten periods at the configured 10 SPS).
	ConversionWait time.Duration
}

// Device wraps an I2C connection to a NAU7802.
type Device struct {
	bus  drivers.I2C
	addr uint16
	cfg  Config

	mu     sync.Mutex
	offset int32
	scale  float64

	// Fixed buffers to avoid per-call heap allocations.
	w [2]byte
	r [3]byte
}

// New creates the device object without touching the bus.
func New(bus drivers.I2C, cfg Config) *Device {
	if cfg.Address == 0 {
		cfg.Address = Address
	}
	if cfg.Gain == 0 {
		cfg.Gain = 64
	}
	if cfg.ConversionWait <= 0 {
		cfg.ConversionWait = time.Second
	}
	return &Device{bus: bus, addr: cfg.Address, cfg: cfg, scale: 1}
}

// Configure runs the power-on bring-up: register reset, digital and analog
// power-up, internal LDO at 3.0 V, PGA gain, 10 SPS, and one analog front
// end calibration. Call once after power-on and after any gain change.
func (d *Device) Configure() error {
	gainCode, err := gainCodeOf(d.cfg.Gain)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.reset(); err != nil {
		return err
	}
	if err := d.powerUp(); err != nil {
		return err
	}
	if err := d.updateRegister(regCtrl1, ctrl1LDOMask, ldo3V0<<ctrl1LDOShift); err != nil {
		return err
	}
	if err := d.setBits(regPUCtrl, puCtrlAVDDS); err != nil {
		return err
	}
	if err := d.updateRegister(regCtrl1, ctrl1GainMask, gainCode); err != nil {
		return err
	}
	if err := d.updateRegister(regCtrl2, ctrl2RateMask, rate10SPS<<ctrl2RateShft); err != nil {
		return err
	}
	// Turn off the chopper clock (power-on sequencing, datasheet 9.1) and
	// enable the channel-2 decoupling cap (application circuit, 9.14).
	if err := d.writeRegister(regADC, 0x30); err != nil {
		return err
	}
	if err := d.setBits(regPGAPwr, pgaPwrCapEn); err != nil {
		return err
	}
	if err := d.setBits(regPUCtrl, puCtrlCS); err != nil {
		return err
	}
	return d.calibrateAFE()
}

// Available reports whether a conversion is waiting to be read.
func (d *Device) Available() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, err := d.readRegister(regPUCtrl)
	if err != nil {
		return false, err
	}
	return v&puCtrlCR != 0, nil
}

// Raw blocks until a conversion is ready (bounded by ConversionWait) and
// returns it as a signed 24-bit value.
func (d *Device) Raw() (int32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.raw()
}

// Tare averages samples conversions from the unloaded cell and stores the
// result as the zero offset. Returns the new offset.
func (d *Device) Tare(samples int) (int32, error) {
	if samples <= 0 {
		samples = DefaultSamples
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	avg, err := d.average(samples)
	if err != nil {
		return 0, err
	}
	d.offset = avg
	return d.offset, nil
}

// Calibrate derives the scale factor from a reference mass on the cell:
// average offset-adjusted conversion divided by referenceWeight.
func (d *Device) Calibrate(referenceWeight float64, samples int) (float64, error) {
	if referenceWeight == 0 {
		return 0, ErrZeroReference
	}
	if samples <= 0 {
		samples = DefaultSamples
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	avg, err := d.average(samples)
	if err != nil {
		return 0, err
	}
	d.scale = float64(avg-d.offset) / referenceWeight
	return d.scale, nil
}

// Weight takes one conversion and applies (raw - offset) / scale.
func (d *Device) Weight() (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	raw, err := d.raw()
	if err != nil {
		return 0, err
	}
	return float64(raw-d.offset) / d.scale, nil
}

// Offset returns the zero offset in raw units.
func (d *Device) Offset() int32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.offset
}

// SetOffset overrides the zero offset, for restoring a stored calibration.
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

// Revision returns the silicon revision code.
func (d *Device) Revision() (byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, err := d.readRegister(regDeviceRev)
	return v & 0x0F, err
}

// ---------------- bring-up steps (d.mu held) ----------------

func (d *Device) reset() error {
	if err := d.setBits(regPUCtrl, puCtrlRR); err != nil {
		return err
	}
	time.Sleep(time.Millisecond)
	return d.clearBits(regPUCtrl, puCtrlRR)
}

func (d *Device) powerUp() error {
	if err := d.setBits(regPUCtrl, puCtrlPUD|puCtrlPUA); err != nil {
		return err
	}
	// Power-up ready takes roughly 200 µs.
	for i := 0; i < 100; i++ {
		v, err := d.readRegister(regPUCtrl)
		if err != nil {
			return err
		}
		if v&puCtrlPUR != 0 {
			return nil
		}
		time.Sleep(time.Millisecond)
	}
	return ErrPowerUp
}

// calibrateAFE recalibrates the analog front end; needed after any change to
// gain, rate or channel. Completes in ~350 ms, bounded here at 1 s.
func (d *Device) calibrateAFE() error {
	if err := d.setBits(regCtrl2, ctrl2CalStart); err != nil {
		return err
	}
	deadline := time.Now().Add(time.Second)
	for {
		v, err := d.readRegister(regCtrl2)
		if err != nil {
			return err
		}
		if v&ctrl2CalStart == 0 {
			if v&ctrl2CalError != 0 {
				return ErrCalibration
			}
			return nil
		}
		if time.Now().After(deadline) {
			return ErrCalibration
		}
		time.Sleep(time.Millisecond)
	}
}

// ---------------- conversions (d.mu held) ----------------

func (d *Device) raw() (int32, error) {
	deadline := time.Now().Add(d.cfg.ConversionWait)
	for {
		v, err := d.readRegister(regPUCtrl)
		if err != nil {
			return 0, err
		}
		if v&puCtrlCR != 0 {
			break
		}
		if time.Now().After(deadline) {
			return 0, ErrTimeout
		}
		time.Sleep(10 * time.Millisecond)
	}

	d.w[0] = regADCOutB2
	if err := d.bus.Tx(d.addr, d.w[:1], d.r[:3]); err != nil {
		return 0, err
	}
	raw := uint32(d.r[0])<<16 | uint32(d.r[1])<<8 | uint32(d.r[2])
	if raw&0x800000 != 0 {
		return int32(raw) - 0x1000000, nil
	}
	return int32(raw), nil
}

func (d *Device) average(samples int) (int32, error) {
	var total int64
	for i := 0; i < samples; i++ {
		v, err := d.raw()
		if err != nil {
			return 0, err
		}
		total += int64(v)
	}
	return int32(total / int64(samples)), nil
}

// ---------------- low-level register access (d.mu held) ----------------

func (d *Device) readRegister(reg byte) (byte, error) {
	d.w[0] = reg
	if err := d.bus.Tx(d.addr, d.w[:1], d.r[:1]); err != nil {
		return 0, err
	}
	return d.r[0], nil
}

func (d *Device) writeRegister(reg, val byte) error {
	d.w[0] = reg
	d.w[1] = val
	return d.bus.Tx(d.addr, d.w[:2], nil)
}

// updateRegister is the read-modify-write pattern for a masked field.
func (d *Device) updateRegister(reg, mask, val byte) error {
	cur, err := d.readRegister(reg)
	if err != nil {
		return err
	}
	return d.writeRegister(reg, (cur&^mask)|(val&mask))
}

func (d *Device) setBits(reg, mask byte) error {
	cur, err := d.readRegister(reg)
	if err != nil {
		return err
	}
	return d.writeRegister(reg, cur|mask)
}

func (d *Device) clearBits(reg, mask byte) error {
	cur, err := d.readRegister(reg)
	if err != nil {
		return err
	}
	return d.writeRegister(reg, cur&^mask)
}

func gainCodeOf(gain int) (byte, error) {
	switch gain {
	case 1:
		return gainCode1, nil
	case 2:
		return gainCode2, nil
	case 4:
		return gainCode4, nil
	case 8:
		return gainCode8, nil
	case 16:
		return gainCode16, nil
	case 32:
		return gainCode32, nil
	case 64:
		return gainCode64, nil
	case 128:
		return gainCode128, nil
	default:
		return 0, ErrInvalidGain
	}
}
