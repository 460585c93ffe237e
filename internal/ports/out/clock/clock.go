package clock

import "time"

// Clock provides time to the application.
// Booking ids, storage paths and record timestamps are all derived from it, so tests
// substitute a controllable implementation.
type Clock interface {
	Now() time.Time
}
