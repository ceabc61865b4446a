package websocket

import "time"

const (
	reaperArmed    = "armed"
	reaperDisarmed = "disarmed"
)

// idle eviction timer of one room. Only the room goroutine calls its methods;
// the timer callback just enqueues an alarm carrying the generation it was
// armed with, so a callback racing a disarm is recognized as stale.
type reaper struct {
	threshold  time.Duration
	timer      *time.Timer
	generation uint64
	fireAt     time.Time // zero while disarmed
	fire       func(generation uint64)
}

func newReaper(threshold time.Duration, fire func(generation uint64)) *reaper {
	return &reaper{
		threshold: threshold,
		fire:      fire,
	}
}

// schedules a check at the given time, replacing any pending one
func (rp *reaper) arm(at time.Time) {
	rp.stopTimer()
	rp.generation++
	rp.fireAt = at

	generation := rp.generation
	rp.timer = time.AfterFunc(time.Until(at), func() {
		rp.fire(generation)
	})
}

// cancels the pending check; returns false if none was armed
func (rp *reaper) disarm() bool {
	if rp.fireAt.IsZero() {
		return false
	}

	rp.stopTimer()
	rp.generation++
	rp.fireAt = time.Time{}
	return true
}

// consumes an alarm; returns false for stale generations
func (rp *reaper) accept(generation uint64) bool {
	if rp.fireAt.IsZero() || generation != rp.generation {
		return false
	}

	rp.timer = nil
	rp.fireAt = time.Time{}
	return true
}

// reports whether lastActivity is old enough to evict at now
func (rp *reaper) expired(lastActivity, now time.Time) bool {
	return now.Sub(lastActivity) >= rp.threshold
}

func (rp *reaper) armed() bool {
	return !rp.fireAt.IsZero()
}

func (rp *reaper) scheduledAt() time.Time {
	return rp.fireAt
}

func (rp *reaper) state() string {
	if rp.armed() {
		return reaperArmed
	}

	return reaperDisarmed
}

func (rp *reaper) stopTimer() {
	if rp.timer != nil {
		rp.timer.Stop()
		rp.timer = nil
	}
}
