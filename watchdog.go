// Package main - watchdog.go
//
// This file implements the idle watchdog that starts the game and restarts it
// after a game over.
//
// Detection:
// Each cycle the captured frame is reduced to a 64-bit average hash. The scene
// counts as frozen when the hash is within MaxDistance of the previous cycle's
// hash. A restart (jump tap) is due when the scene is frozen and no jump or
// duck has been issued for IdleReset.
//
// The last action time starts at zero, so the first frozen frame after the
// sprite has been seen triggers a tap and starts a fresh game.
package main

import (
	"image"
	"time"

	"github.com/corona10/goimagehash"
)

// Watchdog decides when to tap the jump key to (re)start the game
type Watchdog struct {
	cfg        WatchdogConfig
	lastHash   *goimagehash.ImageHash
	lastAction time.Time
	now        func() time.Time
}

// NewWatchdog creates a watchdog
func NewWatchdog(cfg WatchdogConfig) *Watchdog {
	return &Watchdog{
		cfg: cfg,
		now: time.Now,
	}
}

// NoteAction records that a jump or duck was issued
func (w *Watchdog) NoteAction() {
	w.lastAction = w.now()
}

// Frozen hashes img and reports whether it matches the previous frame
func (w *Watchdog) Frozen(img image.Image) bool {
	hash, err := goimagehash.AverageHash(img)
	if err != nil {
		LogDebug("Frame hash failed: %v", err)
		return false
	}

	prev := w.lastHash
	w.lastHash = hash
	if prev == nil {
		return false
	}

	dist, err := prev.Distance(hash)
	if err != nil {
		LogDebug("Frame hash distance failed: %v", err)
		return false
	}
	return dist <= w.cfg.MaxDistance
}

// Check returns true when a restart tap is due. A due restart counts as an
// action, so the next one waits another IdleReset.
func (w *Watchdog) Check(img image.Image) bool {
	if !w.cfg.Enabled {
		return false
	}

	frozen := w.Frozen(img)
	now := w.now()
	if !frozen || now.Sub(w.lastAction) < w.cfg.IdleReset {
		return false
	}

	w.lastAction = now
	return true
}
