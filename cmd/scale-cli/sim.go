package main

import "loadcell-go/drivers/hx711"

// simHX711 is a software stand-in for the chip: it speaks the real pulse
// protocol on a fake pin pair, so the console exercises the full driver
// stack. Conversion values follow a linear bridge model with a deterministic
// few-counts ripple, which makes tare and calibrate behave like hardware.
//
// The console is single-threaded and the driver serialises line access, so
// the simulator carries no lock of its own.
type simHX711 struct {
	bit  int // clock rising edges since the current exchange began
	sck  bool
	cur  uint32
	load float64 // grams currently "on" the cell
	seq  uint32
}

func newSimHX711() *simHX711 {
	s := &simHX711{}
	s.cur = uint32(s.nextRaw()) & 0xFFFFFF
	return s
}

// SetLoad places a mass on the simulated cell.
func (s *simHX711) SetLoad(grams float64) { s.load = grams }

// nextRaw models the bridge: an intrinsic offset, ~21 counts per gram and a
// little ripple from a linear congruential generator.
func (s *simHX711) nextRaw() int32 {
	s.seq = s.seq*1664525 + 1013904223
	ripple := int32(s.seq>>28) - 8
	return 8400 + int32(s.load*21.3) + ripple
}

func (s *simHX711) readDout() bool {
	if s.bit > 24 {
		s.cur = uint32(s.nextRaw()) & 0xFFFFFF
		s.bit = 0
	}
	if s.bit == 0 {
		return false // conversion always ready
	}
	return (s.cur>>(24-uint(s.bit)))&1 == 1
}

func (s *simHX711) clock(level bool) {
	if level && !s.sck {
		s.bit++
	}
	s.sck = level
}

func (s *simHX711) Dout() hx711.Pin { return &simPin{c: s, dout: true} }
func (s *simHX711) Sck() hx711.Pin  { return &simPin{c: s} }

type simPin struct {
	c    *simHX711
	dout bool
}

func (p *simPin) ConfigureInput() error { return nil }

func (p *simPin) ConfigureOutput(initial bool) error {
	if !p.dout {
		p.c.clock(initial)
	}
	return nil
}

func (p *simPin) Set(level bool) {
	if !p.dout {
		p.c.clock(level)
	}
}

func (p *simPin) Get() bool {
	if p.dout {
		return p.c.readDout()
	}
	return p.c.sck
}
