package main

import (
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestWatchdog(cfg WatchdogConfig) (*Watchdog, *fakeClock) {
	clock := newFakeClock()
	w := NewWatchdog(cfg)
	w.now = clock.Now
	return w, clock
}

func halves(vertical bool) *image.RGBA {
	img := grayImage(64, 64, daySky)
	if vertical {
		fillRect(img, image.Rect(0, 0, 32, 64), dayInk)
	} else {
		fillRect(img, image.Rect(0, 0, 64, 32), dayInk)
	}
	return img
}

func TestWatchdogRestartsFrozenIdleScene(t *testing.T) {
	w, clock := newTestWatchdog(WatchdogConfig{Enabled: true, IdleReset: 7 * time.Second})
	frame := halves(true)

	// No previous hash yet
	assert.False(t, w.Check(frame))

	// Frozen and never acted: restart right away
	clock.Advance(100 * time.Millisecond)
	assert.True(t, w.Check(frame))

	// The restart counts as an action
	clock.Advance(time.Second)
	assert.False(t, w.Check(frame))

	clock.Advance(7 * time.Second)
	assert.True(t, w.Check(frame))
}

func TestWatchdogIgnoresChangingScene(t *testing.T) {
	w, clock := newTestWatchdog(WatchdogConfig{Enabled: true, IdleReset: time.Second})

	for i := 0; i < 6; i++ {
		clock.Advance(5 * time.Second)
		assert.False(t, w.Check(halves(i%2 == 0)), "cycle %d", i)
	}
}

func TestWatchdogWaitsForIdleReset(t *testing.T) {
	w, clock := newTestWatchdog(WatchdogConfig{Enabled: true, IdleReset: 7 * time.Second})
	frame := halves(false)

	w.NoteAction()
	assert.False(t, w.Check(frame))
	clock.Advance(6 * time.Second)
	assert.False(t, w.Check(frame))

	clock.Advance(time.Second)
	assert.True(t, w.Check(frame))
}

func TestWatchdogDisabled(t *testing.T) {
	w, clock := newTestWatchdog(WatchdogConfig{Enabled: false, IdleReset: time.Second})
	frame := halves(true)

	for i := 0; i < 3; i++ {
		clock.Advance(10 * time.Second)
		assert.False(t, w.Check(frame))
	}
}

func TestWatchdogFrozen(t *testing.T) {
	w, _ := newTestWatchdog(WatchdogConfig{Enabled: true})

	assert.False(t, w.Frozen(halves(true)))
	assert.True(t, w.Frozen(halves(true)))
	assert.False(t, w.Frozen(halves(false)))
}
