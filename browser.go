// Package main - browser.go
//
// This file implements the Browser controller that manages chromedp for the
// Dino game. It opens chrome://dino, captures the viewport and dispatches key
// events straight to the page.
//
// Key Responsibilities:
//   - Chromedp browser lifecycle management (start, navigate, close)
//   - Screenshot capture with timeout protection (5s), cropped to the region
//   - Key dispatch via DevTools Input.dispatchKeyEvent
//   - Bringing the game tab to the front for the native backends
//
// Browser Architecture:
// The Browser uses nested contexts for proper resource management:
//   - allocCtx: Allocator context for browser process management
//   - ctx: Browser context for page operations
// Both contexts have cancel functions for graceful cleanup.
//
// Timeout Strategy:
//   - Navigation: 30 seconds
//   - Screenshot: 5 seconds (prevent hanging)
//   - Key event: 2 seconds
//
// Backends:
// With capture.backend "browser" the Browser is both the frame source and the
// key emitter. With the native backends it only opens the game window; frames
// and keys then go through the OS.
package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	_ "image/png"
	"strings"
	"time"
	"unicode"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// browserKey describes one key for DevTools key events
type browserKey struct {
	key  string // KeyboardEvent.key
	code string // KeyboardEvent.code
	vk   int64  // Windows virtual key code, becomes KeyboardEvent.keyCode
}

var browserKeys = map[string]browserKey{
	"space": {key: " ", code: "Space", vk: 32},
	"down":  {key: "ArrowDown", code: "ArrowDown", vk: 40},
	"up":    {key: "ArrowUp", code: "ArrowUp", vk: 38},
	"enter": {key: "Enter", code: "Enter", vk: 13},
}

// lookupBrowserKey maps a key binding to its DevTools description.
// Single letters and digits are accepted besides the named keys.
func lookupBrowserKey(name string) (browserKey, error) {
	if k, ok := browserKeys[strings.ToLower(name)]; ok {
		return k, nil
	}

	runes := []rune(name)
	if len(runes) == 1 {
		r := unicode.ToUpper(runes[0])
		switch {
		case r >= 'A' && r <= 'Z':
			return browserKey{key: strings.ToLower(name), code: "Key" + string(r), vk: int64(r)}, nil
		case r >= '0' && r <= '9':
			return browserKey{key: name, code: "Digit" + name, vk: int64(r)}, nil
		}
	}
	return browserKey{}, fmt.Errorf("unsupported browser key %q", name)
}

// Browser manages the chromedp browser instance for the game.
//
// Lifecycle:
//  1. NewBrowser(): Create instance from configuration
//  2. Start(): Initialize chromedp contexts and navigate to the game URL
//  3. UseRegion(): Validate the capture region against the viewport
//  4. Capture() / SendKey(): Called by the main loop every cycle
//  5. Close(): Clean up contexts and browser process
type Browser struct {
	cfg         BrowserConfig
	ctx         context.Context
	cancel      context.CancelFunc
	allocCtx    context.Context
	allocCancel context.CancelFunc
	region      image.Rectangle // Zero means the whole viewport
}

// NewBrowser creates a new browser instance
func NewBrowser(cfg BrowserConfig) *Browser {
	return &Browser{cfg: cfg}
}

// Start launches Chrome and navigates to the game URL.
//
// Algorithm:
//  1. Create exec allocator context with browser options:
//     - headless=false (the game window must be visible)
//     - disable automation banners
//     - window size from configuration
//     - custom Chrome binary if configured
//  2. Create browser context with a debug logger
//  3. Navigate to the game URL with a 30s timeout
func (b *Browser) Start() error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", false),
		chromedp.Flag("disable-gpu", false),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(b.cfg.Width, b.cfg.Height),
	)
	if b.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(b.cfg.ExecPath))
	}

	b.allocCtx, b.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	LogInfo("Browser allocator context created")

	b.ctx, b.cancel = chromedp.NewContext(b.allocCtx, chromedp.WithLogf(func(format string, args ...interface{}) {
		LogDebug(format, args...)
	}))
	LogInfo("Browser context created")

	LogInfo("Navigating to %s", b.cfg.URL)
	navCtx, navCancel := context.WithTimeout(b.ctx, 30*time.Second)
	defer navCancel()

	if err := chromedp.Run(navCtx, chromedp.Navigate(b.cfg.URL)); err != nil {
		return fmt.Errorf("failed to open %s: %w", b.cfg.URL, err)
	}

	LogInfo("Navigation completed successfully")
	return nil
}

// valid reports whether the browser context is usable
func (b *Browser) valid() bool {
	return b.ctx != nil && b.ctx.Err() == nil
}

// BringToFront activates the game tab so native key events reach it
func (b *Browser) BringToFront() error {
	if !b.valid() {
		return fmt.Errorf("browser context is invalid")
	}
	ctx, cancel := context.WithTimeout(b.ctx, 2*time.Second)
	defer cancel()

	return chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return page.BringToFront().Do(ctx)
	}))
}

// screenshot captures the full viewport
func (b *Browser) screenshot(ctx context.Context) (image.Image, error) {
	if !b.valid() {
		return nil, fmt.Errorf("%w: browser context is invalid", ErrCaptureUnavailable)
	}

	captureCtx, cancel := context.WithTimeout(b.ctx, 5*time.Second)
	defer cancel()
	// Stop early when the loop is cancelled
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var buf []byte
	if err := chromedp.Run(captureCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCaptureUnavailable, err)
	}

	img, _, err := image.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCaptureUnavailable, err)
	}
	return img, nil
}

// UseRegion measures the viewport and validates the capture region against it
func (b *Browser) UseRegion(region Bounds) error {
	img, err := b.screenshot(context.Background())
	if err != nil {
		return err
	}

	viewport := img.Bounds()
	rect, err := resolveRegion(region, viewport)
	if err != nil {
		return err
	}
	b.region = rect

	LogInfo("Browser capture: viewport %v, region %v", viewport, rect)
	return nil
}

// Capture takes a screenshot of the page, cropped to the capture region
func (b *Browser) Capture(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := b.screenshot(ctx)
	if err != nil {
		return nil, err
	}

	rect := b.region
	if rect.Empty() {
		rect = img.Bounds()
	}
	if !rect.In(img.Bounds()) {
		return nil, fmt.Errorf("%w: region %v outside viewport %v", ErrInvalidRegion, rect, img.Bounds())
	}
	return NewFrame(cropImage(img, rect))
}

// cropImage copies rect of img into a zero-origin RGBA image
func cropImage(img image.Image, rect image.Rectangle) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Rect, img, rect.Min, draw.Src)
	return dst
}

// SendKey dispatches a key event to the page
func (b *Browser) SendKey(key string, mode KeyMode) error {
	if !b.valid() {
		return fmt.Errorf("browser context is invalid")
	}

	k, err := lookupBrowserKey(key)
	if err != nil {
		return err
	}

	var types []input.KeyType
	switch mode {
	case KeyPress:
		types = []input.KeyType{input.KeyDown, input.KeyUp}
	case KeyHold:
		types = []input.KeyType{input.KeyDown}
	case KeyRelease:
		types = []input.KeyType{input.KeyUp}
	default:
		return fmt.Errorf("unknown key mode %v", mode)
	}

	ctx, cancel := context.WithTimeout(b.ctx, 2*time.Second)
	defer cancel()

	err = chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, t := range types {
			err := input.DispatchKeyEvent(t).
				WithKey(k.key).
				WithCode(k.code).
				WithWindowsVirtualKeyCode(k.vk).
				WithNativeVirtualKeyCode(k.vk).
				Do(ctx)
			if err != nil {
				return err
			}
		}
		return nil
	}))
	if err != nil {
		return fmt.Errorf("dispatch %s %q: %w", mode, key, err)
	}
	return nil
}

// Close closes the browser
func (b *Browser) Close() error {
	LogInfo("Closing browser...")
	if b.cancel != nil {
		LogDebug("Cancelling browser context")
		b.cancel()
	}
	if b.allocCancel != nil {
		LogDebug("Cancelling allocator context")
		b.allocCancel()
	}
	LogInfo("Browser closed successfully")
	return nil
}
