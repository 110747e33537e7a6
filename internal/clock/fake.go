package clock

import "time"

// FakeClock is a Clock frozen at a fixed instant. Tests move it forward
// explicitly with Advance instead of sleeping.
type FakeClock struct {
	now time.Time
}

// NewFakeClock pins the clock at t, normalized to UTC to match the
// system clock's behavior.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t.UTC()}
}

func (c *FakeClock) Now() time.Time {
	return c.now
}

// Advance shifts the frozen instant forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}
