// Package main - utils.go
//
// Small helpers shared by the loop, the debug view and the tray.
//
// Contents:
//   - Timer: per-cycle latency, logged as a structured debug event
//   - FormatDuration: uptime for the tray status line ("2m 30s")
//   - SafeGo: named goroutines that log a panic with its stack instead of
//     taking the process down
//   - RateLimiter: lets an event through at most once per interval; used for
//     "sprite not found" logging and debug view refreshes
//
// Note: Logging functionality lives in debug.go
package main

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Timer measures how long a named step takes
type Timer struct {
	step  string
	begin time.Time
}

// NewTimer starts timing step
func NewTimer(step string) *Timer {
	return &Timer{step: step, begin: time.Now()}
}

// Elapsed is the time since NewTimer
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.begin)
}

// Log emits the elapsed time at debug level
func (t *Timer) Log() {
	log.Debug().Str("step", t.step).Dur("elapsed", t.Elapsed()).Msg("timing")
}

// FormatDuration renders d as "1h 2m 3s", dropping leading zero units
func FormatDuration(d time.Duration) string {
	total := int(d / time.Second)
	h, m, s := total/3600, total/60%60, total%60

	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// SafeGo starts fn in a goroutine. A panic is logged with the goroutine name
// and stack; callers that need to notice it use a channel closed by a defer
// inside fn.
func SafeGo(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				LogError("Panic in %s: %v\n%s", name, r, debug.Stack())
			}
		}()
		fn()
	}()
}

// RateLimiter allows one event per interval
type RateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	now      func() time.Time
}

// NewRateLimiter creates a limiter that allows the first event right away
func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{interval: interval, now: time.Now}
}

// Allow reports whether an event may pass now and, if so, starts a new interval
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if !rl.last.IsZero() && now.Sub(rl.last) < rl.interval {
		return false
	}
	rl.last = now
	return true
}

// Reset lets the next event through regardless of the interval
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	rl.last = time.Time{}
	rl.mu.Unlock()
}
