package drive

import "time"

// Ticker blocks the move loop until the next tick boundary. Abstracting the
// tick source lets tests drive the loop with a virtual clock instead of
// sleeping at the real control rate.
type Ticker interface {
	Wait()
	Stop()
}

// rateTicker is the wall-clock ticker used on the robot.
type rateTicker struct {
	t *time.Ticker
}

// NewRateTicker returns a Ticker firing at the given frequency.
func NewRateTicker(hz float64) Ticker {
	return &rateTicker{t: time.NewTicker(time.Duration(float64(time.Second) / hz))}
}

func (r *rateTicker) Wait() { <-r.t.C }

func (r *rateTicker) Stop() { r.t.Stop() }
