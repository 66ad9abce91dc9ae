package hx711

// Channel identifies the HX711 input channel implied by a gain setting.
// Channel A carries the bridge signal at gain 128 or 64; channel B is the
// auxiliary input, fixed at gain 32.
type Channel uint8

const (
	ChannelA Channel = iota
	ChannelB
)

func (c Channel) String() string {
	if c == ChannelB {
		return "B"
	}
	return "A"
}

// Gain is the amplifier gain latched for the next conversion. Only the three
// enumerated values are accepted; everything else fails validation before any
// line activity.
type Gain uint8

const (
	Gain128 Gain = 128
	Gain64  Gain = 64
	Gain32  Gain = 32
)

// gainSelect maps each valid gain to its input channel and the number of
// trailing clock pulses that select it for the next conversion.
var gainSelect = map[Gain]struct {
	channel Channel
	pulses  int
}{
	Gain128: {ChannelA, 1},
	Gain64:  {ChannelA, 3},
	Gain32:  {ChannelB, 2},
}

// Valid reports whether g is one of the three settings the chip understands.
func (g Gain) Valid() bool {
	_, ok := gainSelect[g]
	return ok
}

// Channel returns the input channel g selects. Invalid gains report ChannelA.
func (g Gain) Channel() Channel { return gainSelect[g].channel }

// pulses returns the trailing clock pulse count for g. Callers validate first.
func (g Gain) pulses() int { return gainSelect[g].pulses }
