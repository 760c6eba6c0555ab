package chatapi

import (
	"regexp"
	"strconv"
	"time"
)

// RetryPolicy configures the request executor. A zero value gets defaults
// from withDefaults, so callers only set what they care about.
type RetryPolicy struct {
	// MaxAttempts bounds transport failures and unexpected status codes.
	// Rate-limit responses (409/429) do not count against it.
	MaxAttempts int
	// BaseDelay is the unit for the rate-limit sleep, which grows linearly
	// with the number of 409s seen on this request.
	BaseDelay time.Duration
	// MaxDelay caps the computed rate-limit sleep.
	MaxDelay time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 5 * time.Second
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 60 * time.Second
	}
	return p
}

// RetryState tracks progress through one request's retry sequence. It is an
// immutable value: each transition returns a new state, which keeps the
// backoff arithmetic unit-testable without sleeping.
type RetryState struct {
	// Attempts counts failures that consume the attempt budget.
	Attempts int
	// RateLimitHits counts 409 responses, which never consume the budget
	// but grow the sleep between retries.
	RateLimitHits int
}

// Failed records an attempt-consuming failure.
func (s RetryState) Failed() RetryState {
	s.Attempts++
	return s
}

// RateLimited records a 409 response.
func (s RetryState) RateLimited() RetryState {
	s.RateLimitHits++
	return s
}

// Exhausted reports whether the attempt budget is spent.
func (s RetryState) Exhausted(p RetryPolicy) bool {
	return s.Attempts >= p.MaxAttempts
}

// RateLimitDelay returns the client-side component of the sleep after a 409:
// hits * BaseDelay, capped at MaxDelay. The executor sleeps the larger of
// this and the server-suggested wait, so a persistently busy endpoint backs
// us off even when it keeps suggesting tiny waits.
func (s RetryState) RateLimitDelay(p RetryPolicy) time.Duration {
	d := time.Duration(s.RateLimitHits) * p.BaseDelay
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// The 409 body is free text along the lines of "You can perform this action
// again in 2 seconds"; there is no structured field to read.
var waitSecondsRe = regexp.MustCompile(`(\d+) seconds?`)

// ParseWaitSeconds extracts the server-suggested wait from a 409 body.
// ok is false when the body carries no recognizable wait time.
func ParseWaitSeconds(body string) (wait time.Duration, ok bool) {
	m := waitSecondsRe.FindStringSubmatch(body)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return time.Duration(n) * time.Second, true
}
