package main

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	daySky    = 247
	dayInk    = 83
	nightSky  = 30
	nightInk  = 200
	spriteDim = 16
)

// grayImage returns a w x h image filled with one gray level
func grayImage(w, h int, v uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = v, v, v, 255
	}
	return img
}

// fillRect paints r with a gray level
func fillRect(img *image.RGBA, r image.Rectangle, v uint8) {
	c := color.RGBA{v, v, v, 255}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

// paintPixels paints n pixels of r row by row
func paintPixels(img *image.RGBA, r image.Rectangle, n int, v uint8) {
	c := color.RGBA{v, v, v, 255}
	for y := r.Min.Y; y < r.Max.Y && n > 0; y++ {
		for x := r.Min.X; x < r.Max.X && n > 0; x++ {
			img.SetRGBA(x, y, c)
			n--
		}
	}
}

// spriteImage draws an irregular spriteDim x spriteDim pattern
func spriteImage(ink, sky uint8) *image.RGBA {
	img := grayImage(spriteDim, spriteDim, sky)
	for y := 0; y < spriteDim; y++ {
		for x := 0; x < spriteDim; x++ {
			if (x*7+y*13+x*y)%5 < 2 {
				img.SetRGBA(x, y, color.RGBA{ink, ink, ink, 255})
			}
		}
	}
	return img
}

// pasteImage copies src into dst at p
func pasteImage(dst *image.RGBA, src image.Image, p image.Point) {
	b := src.Bounds()
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			dst.Set(p.X+x, p.Y+y, src.At(b.Min.X+x, b.Min.Y+y))
		}
	}
}

func newTestFrame(t *testing.T, img image.Image) *Frame {
	t.Helper()
	frame, err := NewFrame(img)
	require.NoError(t, err)
	t.Cleanup(frame.Close)
	return frame
}

func newTestTemplate(t *testing.T, name string, pose Pose, img image.Image) *Template {
	t.Helper()
	tpl, err := NewTemplate(name, pose, img)
	require.NoError(t, err)
	t.Cleanup(tpl.Close)
	return tpl
}

// testConfig returns a config with small, easy to reason about numbers
func testConfig() *Config {
	cfg := NewConfig()
	cfg.Match.MinConfidence = 0.7
	cfg.LookAhead = LookAheadConfig{OffsetX: 0, OffsetY: 0, Width: 20, Height: 20}
	cfg.Decision = DecisionConfig{Low: 10, High: 30}
	cfg.Watchdog.Enabled = false
	return cfg
}

// keyEvent is one recorded SendKey call
type keyEvent struct {
	Key  string
	Mode KeyMode
}

// fakeKeys records key events and can fail on demand
type fakeKeys struct {
	mu     sync.Mutex
	events []keyEvent
	failOn KeyMode
	fail   bool
}

func (k *fakeKeys) SendKey(key string, mode KeyMode) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.fail && mode == k.failOn {
		return errors.New("injected key failure")
	}
	k.events = append(k.events, keyEvent{Key: key, Mode: mode})
	return nil
}

func (k *fakeKeys) take() []keyEvent {
	k.mu.Lock()
	defer k.mu.Unlock()
	events := k.events
	k.events = nil
	return events
}

// fakeSource replays images and cancels the run when it runs out
type fakeSource struct {
	images []image.Image
	next   int
	cancel context.CancelFunc
	err    error
	closed bool
}

func (s *fakeSource) Capture(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.next >= len(s.images) {
		if s.err != nil {
			return nil, s.err
		}
		s.cancel()
		return nil, ctx.Err()
	}
	img := s.images[s.next]
	s.next++
	return NewFrame(img)
}

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

// fakeClock is a settable time source
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}
