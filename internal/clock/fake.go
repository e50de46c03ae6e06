package clock

import "time"

// FakeClock is a Clock pinned to a fixed instant, advanced manually. Every
// ledger row stamped through it in a test carries the same timestamp, which
// keeps assertions on created_at/converted_at exact.
type FakeClock struct {
	current time.Time
}

func NewFakeClock(at time.Time) *FakeClock {
	return &FakeClock{current: at.UTC()}
}

func (f *FakeClock) Now() time.Time {
	return f.current
}

// Advance moves the clock forward, for tests that span cookie or cache TTLs.
func (f *FakeClock) Advance(d time.Duration) {
	f.current = f.current.Add(d)
}
