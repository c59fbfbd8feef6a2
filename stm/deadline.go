package stm

import "time"

// Deadline is a unified representation of either an absolute point in time,
// a duration relative to now, or unlimited (no deadline at all). It plays
// the role the original library's WTimeArg plays for Retry, Wait, and the
// MaxRetryWait option.
type Deadline struct {
	t         time.Time
	unlimited bool
}

// Unlimited returns a Deadline that never expires.
func Unlimited() Deadline {
	return Deadline{unlimited: true}
}

// At returns a Deadline for an absolute point in time.
func At(t time.Time) Deadline {
	return Deadline{t: t}
}

// After returns a Deadline of now + d.
func After(d time.Duration) Deadline {
	return Deadline{t: time.Now().Add(d)}
}

// IsUnlimited reports whether the deadline never expires.
func (d Deadline) IsUnlimited() bool {
	return d.unlimited
}

// Time returns the absolute deadline. Only meaningful when !IsUnlimited().
func (d Deadline) Time() time.Time {
	return d.t
}

// Expired reports whether the deadline has already passed.
func (d Deadline) Expired() bool {
	if d.unlimited {
		return false
	}
	return !time.Now().Before(d.t)
}

// Before reports whether d is an earlier deadline than o. Unlimited sorts as
// +infinity, so it is never Before anything but another unlimited deadline,
// which it is also not Before.
func (d Deadline) Before(o Deadline) bool {
	if d.unlimited {
		return false
	}
	if o.unlimited {
		return true
	}
	return d.t.Before(o.t)
}

// earlier returns whichever of d and o expires first. Used to combine a
// per-Retry timeout with the call-level MaxRetryWait option (spec's "open
// question": the minimum of the two is taken; if both are unlimited, so is
// the result).
func (d Deadline) earlier(o Deadline) Deadline {
	if d.Before(o) {
		return d
	}
	return o
}
