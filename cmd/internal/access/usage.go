package access

import (
	"math"
	"time"
)

const (
	// DefaultDailyLimit is the number of generations allowed per local day.
	DefaultDailyLimit = 50
	// DefaultCooldown is the minimum gap between two generations.
	DefaultCooldown = 5 * time.Second

	dateLayout = "2006-01-02"
)

// Usage is the per-session generation bookkeeping.
type Usage struct {
	Date   string    // local date of Count, YYYY-MM-DD
	Count  int       // generations consumed on Date
	Last   time.Time // last successful generation; zero when none
	Bypass bool      // set by the admin override
}

// Policy holds the quota knobs.
type Policy struct {
	DailyLimit int
	Cooldown   time.Duration
}

// DefaultPolicy returns the documented defaults.
func DefaultPolicy() Policy {
	return Policy{DailyLimit: DefaultDailyLimit, Cooldown: DefaultCooldown}
}

// Outcome is the result of an admission check.
type Outcome int

const (
	Admitted Outcome = iota
	QuotaExceeded
	CooldownActive
)

func (o Outcome) String() string {
	switch o {
	case Admitted:
		return "admitted"
	case QuotaExceeded:
		return "quota_exceeded"
	case CooldownActive:
		return "cooldown_active"
	default:
		return "unknown"
	}
}

// Decision is an admission verdict. MinutesLeft is set for QuotaExceeded,
// SecondsLeft for CooldownActive.
type Decision struct {
	Outcome     Outcome
	MinutesLeft int
	SecondsLeft int
}

// Admitted reports whether the request may proceed.
func (d Decision) Admitted() bool { return d.Outcome == Admitted }

// RetryAfter is the wait implied by the decision, for Retry-After headers.
func (d Decision) RetryAfter() time.Duration {
	switch d.Outcome {
	case QuotaExceeded:
		return time.Duration(d.MinutesLeft) * time.Minute
	case CooldownActive:
		return time.Duration(d.SecondsLeft) * time.Second
	default:
		return 0
	}
}

// Reset zeroes the counters when u.Date is not the local date of now.
func (u *Usage) Reset(now time.Time) {
	today := now.Format(dateLayout)
	if u.Date == today {
		return
	}
	u.Date = today
	u.Count = 0
	u.Last = time.Time{}
}

// Admit evaluates u against the policy at now. It applies the lazy date
// reset but does not consume quota; see RecordSuccess.
func (p Policy) Admit(u *Usage, now time.Time) Decision {
	if u.Bypass {
		return Decision{Outcome: Admitted}
	}

	u.Reset(now)

	if u.Count >= p.DailyLimit {
		return Decision{Outcome: QuotaExceeded, MinutesLeft: minutesUntilMidnight(now)}
	}

	if !u.Last.IsZero() && p.Cooldown > 0 {
		if elapsed := now.Sub(u.Last); elapsed < p.Cooldown {
			return Decision{Outcome: CooldownActive, SecondsLeft: ceilSeconds(p.Cooldown - elapsed)}
		}
	}

	return Decision{Outcome: Admitted}
}

// RecordSuccess consumes one generation. Callers invoke it only after at
// least one non-empty variant was produced. No-op under bypass.
func RecordSuccess(u *Usage, now time.Time) {
	if u.Bypass {
		return
	}
	u.Reset(now)
	u.Count++
	u.Last = now
}

// Remaining returns the generations left today, or -1 under bypass.
func (p Policy) Remaining(u Usage, now time.Time) int {
	if u.Bypass {
		return -1
	}
	u.Reset(now)
	if left := p.DailyLimit - u.Count; left > 0 {
		return left
	}
	return 0
}

func minutesUntilMidnight(now time.Time) int {
	y, m, d := now.Date()
	midnight := time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
	return int(midnight.Sub(now) / time.Minute)
}

func ceilSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
