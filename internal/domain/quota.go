package domain

import "time"

// QuotaState tracks request spend for one provider on one UTC calendar day.
// Exactly one row exists per (provider, day); a new day means a new row.
type QuotaState struct {
	ID               int64      `db:"id"`
	Provider         string     `db:"provider"`
	Day              time.Time  `db:"day"`
	RequestCount     int        `db:"request_count"`
	LastRateLimitHit *time.Time `db:"last_rate_limit_hit"`
}

// Exhausted reports whether the provider's request cap is spent.
// A non-positive cap disables the check.
func (q *QuotaState) Exhausted(cap int) bool {
	return cap > 0 && q.RequestCount >= cap
}

// CoolingDown reports whether the provider is inside its cooldown window
// after a rate-limit hit (or after crossing its cap, which arms the same
// marker).
func (q *QuotaState) CoolingDown(now time.Time, period time.Duration) bool {
	if q.LastRateLimitHit == nil || period <= 0 {
		return false
	}
	return now.Sub(*q.LastRateLimitHit) < period
}
