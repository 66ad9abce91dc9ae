// services/scale/poller.go
package scale

import (
	"context"
	"math/rand"
	"time"

	"loadcell-go/x/mathx"
)

// Poller samples Weight() from a Scale on a fixed interval and delivers
// readings on a buffered channel. When the consumer falls behind, the oldest
// queued reading is dropped rather than stalling the sampler; the instrument
// keeps its conversion cadence either way.
type Poller struct {
	cfg   PollerConfig
	scale Scale
	out   chan Reading
}

func NewPoller(s Scale, cfg PollerConfig) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	cfg.Interval = mathx.Clamp(cfg.Interval, 10*time.Millisecond, time.Hour)
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	return &Poller{
		cfg:   cfg,
		scale: s,
		out:   make(chan Reading, cfg.QueueSize),
	}
}

// Readings is the delivery channel. It is closed when the poller stops.
func (p *Poller) Readings() <-chan Reading { return p.out }

// Start launches the sampling goroutine. It returns immediately; cancel ctx
// to stop. The first sample is taken after one full interval.
func (p *Poller) Start(ctx context.Context) {
	go func() {
		defer close(p.out)
		timer := time.NewTimer(p.next())
		defer timer.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}

			w, err := p.scale.Weight()
			p.emit(Reading{Weight: w, TsMs: time.Now().UnixMilli(), Err: err})
			timer.Reset(p.next())
		}
	}()
}

func (p *Poller) next() time.Duration {
	d := p.cfg.Interval
	if p.cfg.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(p.cfg.Jitter) + 1))
	}
	return d
}

func (p *Poller) emit(r Reading) {
	for {
		select {
		case p.out <- r:
			return
		default:
		}
		select {
		case <-p.out: // drop the oldest
		default:
		}
	}
}
