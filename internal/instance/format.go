package instance

import (
	"fmt"
	"time"
)

// FormatUntil renders the time remaining until t for humans: whole minutes,
// seconds when under a minute, "any time now" once the target has elapsed,
// and "never" for instances without an expiry.
func FormatUntil(t *time.Time, now time.Time) string {
	if t == nil {
		return "never"
	}

	d := t.Sub(now)
	switch {
	case d <= 0:
		return "any time now"
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	default:
		return fmt.Sprintf("%dm", int(d.Round(time.Minute)/time.Minute))
	}
}
