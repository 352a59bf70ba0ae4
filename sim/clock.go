// sim/clock.go

package sim

import "time"

// Clock is the virtual clock driving the simulation. Only the tick loop
// advances it; everything else reads. The engine is passive with respect
// to wall-clock time: the host supplies every delta.
type Clock struct {
	now    time.Duration
	paused bool
}

// Now returns the elapsed virtual time.
func (c *Clock) Now() time.Duration { return c.now }

func (c *Clock) Paused() bool { return c.paused }

func (c *Clock) SetPaused(paused bool) { c.paused = paused }

func (c *Clock) advance(dt time.Duration) { c.now += dt }
