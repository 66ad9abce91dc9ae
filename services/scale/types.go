// services/scale/types.go
package scale

import "time"

// Scale is the weighing surface a load-cell frontend exposes. Both the
// bit-banged HX711 and the I2C NAU7802 drivers satisfy it.
type Scale interface {
	// Tare zeroes the instrument from samples conversions of the unloaded
	// cell and returns the new raw-unit offset.
	Tare(samples int) (int32, error)
	// Calibrate derives the scale factor from a known reference mass.
	Calibrate(referenceWeight float64, samples int) (float64, error)
	// Weight returns one calibrated reading.
	Weight() (float64, error)
}

// Reading is one polled weight sample. Err is set when the sample failed;
// Weight is then meaningless.
type Reading struct {
	Weight float64
	TsMs   int64
	Err    error
}

// PollerConfig centralises timings and limits. Zero values get defaults.
type PollerConfig struct {
	// Interval between samples. Default 1 s, clamped to [10 ms, 1 h].
	Interval time.Duration
	// Jitter adds a uniform random delay in [0, Jitter] to each cycle so
	// several pollers on one box do not beat against each other.
	Jitter time.Duration
	// QueueSize bounds the reading channel. Default 16.
	QueueSize int
}
