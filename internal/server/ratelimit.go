package server

import (
	"sync"
	"time"
)

// rateLimiter is a per-client fixed-window counter.
type rateLimiter struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*window
	lastGC  time.Time
}

type window struct {
	start time.Time
	count int
}

func newRateLimiter(limit int, period time.Duration) *rateLimiter {
	return &rateLimiter{
		max:     limit,
		window:  period,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

// allow counts one hit for key and reports whether it is within the limit,
// how many hits remain and when the current window resets.
func (rl *rateLimiter) allow(key string) (ok bool, remaining int, reset time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.gc(now)

	w, exists := rl.windows[key]
	if !exists || now.Sub(w.start) >= rl.window {
		w = &window{start: now}
		rl.windows[key] = w
	}
	w.count++

	reset = w.start.Add(rl.window)
	remaining = rl.max - w.count
	if remaining < 0 {
		remaining = 0
	}
	return w.count <= rl.max, remaining, reset
}

// gc drops expired windows at most once per window length.
func (rl *rateLimiter) gc(now time.Time) {
	if now.Sub(rl.lastGC) < rl.window {
		return
	}
	for k, w := range rl.windows {
		if now.Sub(w.start) >= rl.window {
			delete(rl.windows, k)
		}
	}
	rl.lastGC = now
}
