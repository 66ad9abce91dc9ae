package hx711

import (
	"sync"
	"testing"
	"time"
)

// ---- fakes ----

// fakeChip speaks the HX711 side of the two-wire protocol: it presents
// queued conversion results on the data line, shifts one bit per clock
// rising edge, and books how many rising edges each exchange took. The last
// queued frame repeats forever.
type fakeChip struct {
	frames   []int32
	idx      int
	cur      uint32
	bit      int   // rising edges since the current exchange began
	sck      bool  // current clock level
	served   int   // frames fully clocked out
	perFrame []int // rising-edge count per completed exchange
	notReady int   // data line reads high this many times at frame start
}

func newChip(frames ...int32) *fakeChip {
	c := &fakeChip{frames: frames}
	c.cur = uint32(frames[0]) & 0xFFFFFF
	return c
}

func (c *fakeChip) advance(pulses int) {
	c.perFrame = append(c.perFrame, pulses)
	if c.idx < len(c.frames)-1 {
		c.idx++
	}
	c.cur = uint32(c.frames[c.idx]) & 0xFFFFFF
	c.bit = 0
}

// flush closes a trailing exchange so tests can inspect perFrame.
func (c *fakeChip) flush() {
	if c.bit > 24 {
		c.advance(c.bit)
	}
}

func (c *fakeChip) readDout() bool {
	if c.bit > 24 {
		c.advance(c.bit)
	}
	if c.bit == 0 {
		if c.notReady > 0 {
			c.notReady--
			return true
		}
		return false
	}
	return (c.cur>>(24-uint(c.bit)))&1 == 1
}

func (c *fakeChip) clock(level bool) {
	if level && !c.sck {
		c.bit++
		if c.bit == 24 {
			c.served++
		}
	}
	c.sck = level
}

// powerReset models the chip's reaction to the clock line held high past the
// power-down window: the pending conversion is abandoned and the part starts
// over. The latching edge itself is not part of any exchange.
func (c *fakeChip) powerReset() {
	if c.bit > 24 {
		c.advance(c.bit - 1)
	}
	c.bit = 0
}

type chipPin struct {
	c    *fakeChip
	dout bool
	mode string
}

func (p *chipPin) ConfigureInput() error { p.mode = "input"; return nil }
func (p *chipPin) ConfigureOutput(initial bool) error {
	p.mode = "output"
	if !p.dout {
		p.c.clock(initial)
	}
	return nil
}
func (p *chipPin) Set(level bool) {
	if !p.dout {
		p.c.clock(level)
	}
}
func (p *chipPin) Get() bool {
	if p.dout {
		return p.c.readDout()
	}
	return p.c.sck
}

// harness builds a device over a fake chip. Sleeps are recorded, and a sleep
// of the power-down hold while the clock is high resets the fake chip, the
// way the real part latches power-down.
type harness struct {
	chip   *fakeChip
	dout   *chipPin
	sck    *chipPin
	sleeps []time.Duration
}

func newHarness(t *testing.T, cfg Config, frames ...int32) (*harness, *Device) {
	t.Helper()
	h := &harness{chip: newChip(frames...)}
	h.dout = &chipPin{c: h.chip, dout: true}
	h.sck = &chipPin{c: h.chip}
	cfg.Sleep = func(d time.Duration) {
		h.sleeps = append(h.sleeps, d)
		if d >= powerDownHold && h.chip.sck {
			h.chip.powerReset()
		}
	}
	dev, err := New(h.dout, h.sck, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return h, dev
}

// ---- tests ----

func TestSignExtend24(t *testing.T) {
	cases := []struct {
		pattern uint32
		want    int32
	}{
		{0x000000, 0},
		{0x000001, 1},
		{0x7FFFFF, 8388607},
		{0x800000, -8388608},
		{0xFFFFFF, -1},
		{0xFFFF9C, -100},
	}
	for _, c := range cases {
		if got := signExtend24(c.pattern); got != c.want {
			t.Fatalf("signExtend24(%#06x): want %d, got %d", c.pattern, c.want, got)
		}
	}
}

func TestNewDiscardsFirstFrame(t *testing.T) {
	h, dev := newHarness(t, Config{}, 42, 7)
	if h.chip.served != 1 {
		t.Fatalf("construction should clock out exactly one frame, served=%d", h.chip.served)
	}
	h.chip.flush()
	if len(h.chip.perFrame) != 1 || h.chip.perFrame[0] != 25 {
		t.Fatalf("gain 128 exchange should take 25 pulses, got %v", h.chip.perFrame)
	}
	if h.dout.mode != "input" || h.sck.mode != "output" {
		t.Fatalf("pin modes after New: dout=%s sck=%s", h.dout.mode, h.sck.mode)
	}
	raw, err := dev.Raw()
	if err != nil {
		t.Fatalf("Raw: %v", err)
	}
	if raw != 7 {
		t.Fatalf("first sample after the discard: want 7, got %d", raw)
	}
}

func TestNewRejectsInvalidGain(t *testing.T) {
	chip := newChip(0)
	dout := &chipPin{c: chip, dout: true}
	sck := &chipPin{c: chip}
	if _, err := New(dout, sck, Config{Gain: 100}); err != ErrInvalidGain {
		t.Fatalf("want ErrInvalidGain, got %v", err)
	}
}

func TestGainRoundTrip(t *testing.T) {
	_, dev := newHarness(t, Config{}, 0)
	for _, g := range []Gain{Gain64, Gain32, Gain128} {
		if err := dev.SetGain(g); err != nil {
			t.Fatalf("SetGain(%d): %v", g, err)
		}
		got, err := dev.Gain()
		if err != nil {
			t.Fatalf("Gain: %v", err)
		}
		if got != g {
			t.Fatalf("round-trip: want %d, got %d", g, got)
		}
	}
}

func TestSetGainInvalidLeavesStateUntouched(t *testing.T) {
	h, dev := newHarness(t, Config{}, 0)
	before := h.chip.served
	if err := dev.SetGain(Gain(100)); err != ErrInvalidGain {
		t.Fatalf("want ErrInvalidGain, got %v", err)
	}
	if g, _ := dev.Gain(); g != Gain128 {
		t.Fatalf("gain changed by invalid SetGain: %d", g)
	}
	if h.chip.served != before {
		t.Fatalf("invalid SetGain touched the lines: served %d -> %d", before, h.chip.served)
	}
}

func TestSetGainLatchesPulseCount(t *testing.T) {
	h, dev := newHarness(t, Config{}, 0)
	if err := dev.SetGain(Gain64); err != nil {
		t.Fatalf("SetGain(64): %v", err)
	}
	if err := dev.SetGain(Gain32); err != nil {
		t.Fatalf("SetGain(32): %v", err)
	}
	h.chip.flush()
	// Exchange i trails with the pulse count of the gain active during it:
	// construction at 128 (25), first latch read at 64 (27), then at 32 (26).
	want := []int{25, 27, 26}
	if len(h.chip.perFrame) != len(want) {
		t.Fatalf("exchanges: want %d, got %v", len(want), h.chip.perFrame)
	}
	for i := range want {
		if h.chip.perFrame[i] != want[i] {
			t.Fatalf("exchange %d: want %d pulses, got %v", i, want[i], h.chip.perFrame)
		}
	}
}

func TestSetGainSameValueIsNoop(t *testing.T) {
	h, dev := newHarness(t, Config{}, 0)
	before := h.chip.served
	if err := dev.SetGain(Gain128); err != nil {
		t.Fatalf("SetGain(128): %v", err)
	}
	if h.chip.served != before {
		t.Fatalf("same-gain SetGain issued pulses: served %d -> %d", before, h.chip.served)
	}
}

func TestTareUsesMedian(t *testing.T) {
	_, dev := newHarness(t, Config{}, 0, 10, 12, 11, 1000, 9)
	offset, err := dev.Tare(5)
	if err != nil {
		t.Fatalf("Tare: %v", err)
	}
	if offset != 11 {
		t.Fatalf("offset: want 11 (median, outlier rejected), got %d", offset)
	}
	if dev.Offset() != 11 {
		t.Fatalf("Offset(): want 11, got %d", dev.Offset())
	}
}

func TestTareDefaultSampleCount(t *testing.T) {
	h, dev := newHarness(t, Config{}, 0, 5)
	if _, err := dev.Tare(0); err != nil {
		t.Fatalf("Tare: %v", err)
	}
	// One construction discard plus DefaultSamples tare frames.
	if h.chip.served != 1+DefaultSamples {
		t.Fatalf("served: want %d, got %d", 1+DefaultSamples, h.chip.served)
	}
}

func TestCalibrate(t *testing.T) {
	_, dev := newHarness(t, Config{}, 0, 248, 252, 250)
	dev.SetOffset(50)
	scale, err := dev.Calibrate(100, 3)
	if err != nil {
		t.Fatalf("Calibrate: %v", err)
	}
	if scale != 2.0 {
		t.Fatalf("scale: want 2.0, got %v", scale)
	}
	if dev.Scale() != 2.0 {
		t.Fatalf("Scale(): want 2.0, got %v", dev.Scale())
	}
}

func TestCalibrateZeroReference(t *testing.T) {
	_, dev := newHarness(t, Config{}, 0)
	if _, err := dev.Calibrate(0, 3); err != ErrZeroReference {
		t.Fatalf("want ErrZeroReference, got %v", err)
	}
	if dev.Scale() != 1 {
		t.Fatalf("scale mutated by failed Calibrate: %v", dev.Scale())
	}
}

func TestWeightAppliesCalibration(t *testing.T) {
	_, dev := newHarness(t, Config{}, 0, 111)
	dev.SetOffset(11)
	if err := dev.SetScale(2.0); err != nil {
		t.Fatalf("SetScale: %v", err)
	}
	w, err := dev.Weight()
	if err != nil {
		t.Fatalf("Weight: %v", err)
	}
	if w != 50.0 {
		t.Fatalf("weight: want 50.0, got %v", w)
	}
}

func TestSetScaleZeroRejected(t *testing.T) {
	_, dev := newHarness(t, Config{}, 0)
	if err := dev.SetScale(0); err != ErrZeroScale {
		t.Fatalf("want ErrZeroScale, got %v", err)
	}
}

func TestPowerDownThenSampleWakesWithOneDiscard(t *testing.T) {
	h, dev := newHarness(t, Config{}, 5, 999, 100)
	if err := dev.SetPowerDown(true); err != nil {
		t.Fatalf("SetPowerDown(true): %v", err)
	}
	if !dev.PowerDown() {
		t.Fatalf("PowerDown should report true")
	}
	var sawHold bool
	for _, d := range h.sleeps {
		if d >= powerDownHold {
			sawHold = true
		}
	}
	if !sawHold {
		t.Fatalf("power-down must hold the clock high for >= %v; sleeps=%v", powerDownHold, h.sleeps)
	}

	// The wake's discard read must consume exactly one frame (999) before
	// the sample (100) is taken.
	w, err := dev.Weight()
	if err != nil {
		t.Fatalf("Weight: %v", err)
	}
	if w != 100 {
		t.Fatalf("weight after wake: want 100, got %v", w)
	}
	if h.chip.served != 3 {
		t.Fatalf("served: want 3 (construction, wake discard, sample), got %d", h.chip.served)
	}
	if dev.PowerDown() {
		t.Fatalf("device should be awake after sampling")
	}
}

func TestSetPowerDownSameStateIsNoop(t *testing.T) {
	h, dev := newHarness(t, Config{}, 0)
	before := len(h.sleeps)
	if err := dev.SetPowerDown(false); err != nil {
		t.Fatalf("SetPowerDown(false): %v", err)
	}
	if len(h.sleeps) != before || h.chip.served != 1 {
		t.Fatalf("no-op transition touched the chip: sleeps=%d served=%d", len(h.sleeps), h.chip.served)
	}
}

func TestGainGetterWakesDevice(t *testing.T) {
	h, dev := newHarness(t, Config{}, 0)
	if err := dev.SetPowerDown(true); err != nil {
		t.Fatalf("SetPowerDown: %v", err)
	}
	g, err := dev.Gain()
	if err != nil {
		t.Fatalf("Gain: %v", err)
	}
	if g != Gain128 {
		t.Fatalf("gain: want 128, got %d", g)
	}
	if dev.PowerDown() {
		t.Fatalf("reading the gain must wake a powered-down chip")
	}
	if h.chip.served != 2 {
		t.Fatalf("wake should cost exactly one discard read, served=%d", h.chip.served)
	}
}

func TestReadyWaitSleepsUntilLow(t *testing.T) {
	h, dev := newHarness(t, Config{ReadyPoll: 10 * time.Millisecond}, 0, 77)
	h.chip.notReady = 3
	raw, err := dev.Raw()
	if err != nil {
		t.Fatalf("Raw: %v", err)
	}
	if raw != 77 {
		t.Fatalf("raw: want 77, got %d", raw)
	}
	polls := 0
	for _, d := range h.sleeps {
		if d == 10*time.Millisecond {
			polls++
		}
	}
	if polls != 3 {
		t.Fatalf("ready wait: want 3 poll sleeps, got %d (%v)", polls, h.sleeps)
	}
}

func TestConcurrentWeightsDoNotInterleave(t *testing.T) {
	const perG = 10
	frames := make([]int32, 1+2*perG)
	for i := range frames {
		frames[i] = int32(1000 + i)
	}
	h, dev := newHarness(t, Config{}, frames...)

	var wg sync.WaitGroup
	results := make(chan float64, 2*perG)
	for g := 0; g < 2; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perG; i++ {
				w, err := dev.Weight()
				if err != nil {
					t.Errorf("Weight: %v", err)
					return
				}
				results <- w
			}
		}()
	}
	wg.Wait()
	close(results)

	// Interleaved clocking would garble frames: values would repeat or fall
	// outside the queued set. Serialised access consumes each frame once.
	seen := map[float64]bool{}
	for w := range results {
		if w < 1001 || w > float64(1000+2*perG) || seen[w] {
			t.Fatalf("unexpected or duplicated sample %v", w)
		}
		seen[w] = true
	}
	if len(seen) != 2*perG {
		t.Fatalf("samples: want %d distinct, got %d", 2*perG, len(seen))
	}

	h.chip.flush()
	for i, n := range h.chip.perFrame {
		if n != 25 {
			t.Fatalf("exchange %d took %d pulses; a full frame at gain 128 is 25", i, n)
		}
	}
	if h.chip.served != 1+2*perG {
		t.Fatalf("served: want %d, got %d", 1+2*perG, h.chip.served)
	}
}

func TestCloseReleasesPins(t *testing.T) {
	h, dev := newHarness(t, Config{}, 0)
	if err := dev.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if h.dout.mode != "input" || h.sck.mode != "input" {
		t.Fatalf("pins not released: dout=%s sck=%s", h.dout.mode, h.sck.mode)
	}
	if _, err := dev.Weight(); err != ErrClosed {
		t.Fatalf("Weight after Close: want ErrClosed, got %v", err)
	}
	if _, err := dev.Tare(1); err != ErrClosed {
		t.Fatalf("Tare after Close: want ErrClosed, got %v", err)
	}
	if err := dev.SetGain(Gain64); err != ErrClosed {
		t.Fatalf("SetGain after Close: want ErrClosed, got %v", err)
	}
	if err := dev.SetPowerDown(true); err != ErrClosed {
		t.Fatalf("SetPowerDown after Close: want ErrClosed, got %v", err)
	}
	if err := dev.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got %v", err)
	}
}
