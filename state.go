// Package main - state.go
//
// This file implements the runner state shown in the tray and the log.
//
// State Machine States:
//   - Searching: Sprite not found in the recent cycles
//   - Playing: Sprite located, decisions are being issued
//   - Paused: Loop idles until resumed from the tray
//
// State Transitions:
//   Searching -> Playing (sprite found)
//   Playing -> Searching (sprite missing for lostAfter consecutive cycles)
//   any -> Paused (tray Pause)
//   Paused -> Searching (tray Resume)
//
// The state is informational: decisions never depend on it.
package main

import "sync"

// lostAfter is the number of consecutive misses before the sprite counts as lost
const lostAfter = 30

// RunnerState represents the current state of the bot loop
type RunnerState int

const (
	RunnerStateSearching RunnerState = iota
	RunnerStatePlaying
	RunnerStatePaused
)

// String returns the string representation of the state
func (s RunnerState) String() string {
	switch s {
	case RunnerStateSearching:
		return "Searching"
	case RunnerStatePlaying:
		return "Playing"
	case RunnerStatePaused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// RunnerStatus tracks the runner state across cycles
type RunnerStatus struct {
	state  RunnerState
	misses int
	seen   bool
	mu     sync.RWMutex
}

// NewRunnerStatus starts in Searching
func NewRunnerStatus() *RunnerStatus {
	return &RunnerStatus{state: RunnerStateSearching}
}

// State returns the current state
func (rs *RunnerStatus) State() RunnerState {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.state
}

// Seen reports whether the sprite has been found at least once
func (rs *RunnerStatus) Seen() bool {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.seen
}

// Observe records one cycle's detection result
func (rs *RunnerStatus) Observe(found bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.state == RunnerStatePaused {
		return
	}

	if found {
		rs.misses = 0
		if !rs.seen {
			rs.seen = true
			LogInfo("Dino found. Let's play!")
		}
		rs.setLocked(RunnerStatePlaying)
		return
	}

	rs.misses++
	if rs.misses >= lostAfter {
		rs.setLocked(RunnerStateSearching)
	}
}

// SetPaused pauses or resumes the runner
func (rs *RunnerStatus) SetPaused(paused bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if paused {
		rs.setLocked(RunnerStatePaused)
		return
	}
	if rs.state == RunnerStatePaused {
		rs.misses = 0
		rs.setLocked(RunnerStateSearching)
	}
}

func (rs *RunnerStatus) setLocked(s RunnerState) {
	if rs.state != s {
		LogInfo("State: %s -> %s", rs.state, s)
		rs.state = s
	}
}
