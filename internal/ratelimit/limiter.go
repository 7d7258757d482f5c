// Package ratelimit implements per-actor sliding-window admission
// control for actor-triggered relay actions.
package ratelimit

import "time"

// Deny reasons reported to callers.
const (
	ReasonTooFrequent   = "too frequent"
	ReasonBurstExceeded = "burst exceeded"
)

// Config tunes the sliding window.
type Config struct {
	Enabled     bool
	Window      time.Duration
	MaxActions  int
	MinInterval time.Duration
}

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed bool
	Reason  string
}

// Limiter keeps a bounded, time-ordered timestamp bucket per actor.
// Buckets are process-local and not persisted; a restart resets limits.
// The limiter is owned exclusively by the inbox poll loop, which is
// non-reentrant, so no locking is needed.
type Limiter struct {
	cfg     Config
	buckets map[string][]int64
}

// NewLimiter builds a limiter with the given window settings.
func NewLimiter(cfg Config) *Limiter {
	return &Limiter{
		cfg:     cfg,
		buckets: make(map[string][]int64),
	}
}

// Admit decides whether an actor may perform another action at the given
// time. A denied attempt never mutates the bucket, so retries are not
// penalized twice.
func (l *Limiter) Admit(actorID string, now time.Time) Decision {
	if !l.cfg.Enabled {
		return Decision{Allowed: true}
	}

	nowMs := now.UnixMilli()
	windowMs := l.cfg.Window.Milliseconds()

	bucket := l.buckets[actorID]
	// Entries are appended in non-decreasing order, so eviction is
	// always from the front.
	for len(bucket) > 0 && nowMs-bucket[0] > windowMs {
		bucket = bucket[1:]
	}

	if len(bucket) > 0 && l.cfg.MinInterval > 0 && nowMs-bucket[len(bucket)-1] < l.cfg.MinInterval.Milliseconds() {
		l.buckets[actorID] = bucket
		return Decision{Reason: ReasonTooFrequent}
	}

	if l.cfg.MaxActions > 0 && len(bucket) >= l.cfg.MaxActions {
		l.buckets[actorID] = bucket
		return Decision{Reason: ReasonBurstExceeded}
	}

	l.buckets[actorID] = append(bucket, nowMs)
	return Decision{Allowed: true}
}
