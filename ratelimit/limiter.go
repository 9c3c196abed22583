package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Limiter paces outbound calls to the external ledger API. It keeps a sliding
// 60-second window of call timestamps plus a cool-down marker set after an
// observed rate-limit rejection. This is advisory self-throttling shared by
// the concurrent invocations of one process, not a hard cross-process bound.
type Limiter struct {
	mu            sync.Mutex
	callTimes     []time.Time
	maxPerMinute  int
	lastRejection time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

const (
	windowSize     = 60 * time.Second
	cooldownPeriod = 120 * time.Second
	defaultCeiling = 50
)

func NewLimiter() *Limiter {
	return &Limiter{
		maxPerMinute: defaultCeiling,
		now:          time.Now,
		sleep:        sleepCtx,
	}
}

// NewLimiterWithDeps injects the clock and sleeper for tests.
func NewLimiterWithDeps(ceiling int, now func() time.Time, sleep func(context.Context, time.Duration) error) *Limiter {
	return &Limiter{
		maxPerMinute: ceiling,
		now:          now,
		sleep:        sleep,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitIfNeeded blocks until a call is allowed, then records it. After a
// recent rejection every caller pauses a jittered 2.5-3.5s to decorrelate;
// at the ceiling it waits for the oldest timestamp to leave a 65s horizon;
// otherwise it applies a small 0.2-0.5s baseline pacing.
func (l *Limiter) WaitIfNeeded(ctx context.Context) error {
	l.mu.Lock()
	now := l.now()
	l.prune(now)

	var wait time.Duration
	switch {
	case !l.lastRejection.IsZero() && now.Sub(l.lastRejection) < cooldownPeriod:
		wait = 2*time.Second + time.Duration(500+rand.Intn(1000))*time.Millisecond
	case len(l.callTimes) >= l.maxPerMinute:
		wait = 65*time.Second - now.Sub(l.callTimes[0])
	default:
		wait = time.Duration(200+rand.Intn(300)) * time.Millisecond
	}
	l.mu.Unlock()

	if err := l.sleep(ctx, wait); err != nil {
		return err
	}

	l.mu.Lock()
	l.callTimes = append(l.callTimes, l.now())
	l.mu.Unlock()
	return nil
}

// ReportRateLimited records an upstream 429, starting the cool-down.
func (l *Limiter) ReportRateLimited() {
	l.mu.Lock()
	l.lastRejection = l.now()
	l.mu.Unlock()
}

// InWindow reports how many recorded calls remain inside the trailing window.
func (l *Limiter) InWindow() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())
	return len(l.callTimes)
}

func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-windowSize)
	i := 0
	for i < len(l.callTimes) && !l.callTimes[i].After(cutoff) {
		i++
	}
	l.callTimes = l.callTimes[i:]
}
