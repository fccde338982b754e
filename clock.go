package strand

import "time"

// Clock supplies the current time. Components that stamp messages or
// evaluate timeouts accept a Clock so tests can control time; a nil Clock
// means time.Now.
type Clock func() time.Time

// Now returns the clock's current time, falling back to time.Now when the
// clock is nil.
func (c Clock) Now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}
