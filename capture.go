// Package main - capture.go
//
// This file implements the native frame sources: capture of a fixed screen
// region once per cycle, converted into the representations the locator and
// analyzer work on.
//
// Key Responsibilities:
//   - Frame type holding the RGBA image plus BGR and grayscale gocv Mats
//   - Capture region resolution relative to the selected display
//   - Region validation at startup (zero-size, negative, out-of-bounds)
//   - Two native backends: kbinani/screenshot (default) and robotgo
//
// Coordinate System:
// The configured region is relative to the display's top-left corner. Frames
// always start at (0, 0); every rectangle computed by the locator and the
// analyzer is in frame coordinates.
//
// Error Handling:
// An invalid region wraps ErrInvalidRegion and is reported at startup. Any
// capture failure during the run wraps ErrCaptureUnavailable; the main loop
// treats it as fatal.
package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"

	"github.com/go-vgo/robotgo"
	"github.com/kbinani/screenshot"
	"gocv.io/x/gocv"
)

var (
	// ErrInvalidRegion is returned for a zero-size, negative or out-of-bounds capture region.
	ErrInvalidRegion = errors.New("invalid capture region")

	// ErrCaptureUnavailable is returned when the capture device cannot produce a frame.
	ErrCaptureUnavailable = errors.New("capture unavailable")
)

// Frame is one captured region.
//
// Image, Color (BGR) and Gray always have the same size. The frame is owned by
// the loop iteration that captured it and must be closed at the end of it.
type Frame struct {
	Image *image.RGBA
	Color gocv.Mat
	Gray  gocv.Mat
}

// NewFrame builds a frame from an image, moving its origin to (0, 0)
func NewFrame(img image.Image) (*Frame, error) {
	rgba := toRGBA(img)
	if rgba.Rect.Empty() {
		return nil, fmt.Errorf("%w: empty image", ErrCaptureUnavailable)
	}

	color, err := gocv.ImageToMatRGB(rgba)
	if err != nil {
		return nil, fmt.Errorf("failed to convert frame: %w", err)
	}

	gray := gocv.NewMat()
	gocv.CvtColor(color, &gray, gocv.ColorBGRToGray)

	return &Frame{
		Image: rgba,
		Color: color,
		Gray:  gray,
	}, nil
}

// Bounds returns the frame rectangle, always anchored at (0, 0)
func (f *Frame) Bounds() image.Rectangle {
	return f.Image.Rect
}

// Close releases the Mats
func (f *Frame) Close() {
	if f == nil {
		return
	}
	f.Color.Close()
	f.Gray.Close()
}

// toRGBA returns img as a zero-origin *image.RGBA, copying only when needed
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Rect, img, bounds.Min, draw.Src)
	return rgba
}

// FrameSource produces frames of a fixed region
type FrameSource interface {
	Capture(ctx context.Context) (*Frame, error)
	Close() error
}

// resolveRegion turns a display-relative region into an absolute rectangle
// inside area. A region with zero width and height selects the whole area.
func resolveRegion(region Bounds, area image.Rectangle) (image.Rectangle, error) {
	if region.W == 0 && region.H == 0 {
		if area.Empty() {
			return image.Rectangle{}, fmt.Errorf("%w: capture area %v is empty", ErrInvalidRegion, area)
		}
		return area, nil
	}
	if region.Empty() || region.X < 0 || region.Y < 0 {
		return image.Rectangle{}, fmt.Errorf("%w: %+v", ErrInvalidRegion, region)
	}

	rect := region.Rect().Add(area.Min)
	if !rect.In(area) {
		return image.Rectangle{}, fmt.Errorf("%w: %+v outside %v", ErrInvalidRegion, region, area)
	}
	return rect, nil
}

// displayBounds returns the bounds of the given monitor
func displayBounds(display int) (image.Rectangle, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return image.Rectangle{}, fmt.Errorf("%w: no active display", ErrCaptureUnavailable)
	}
	if display < 0 || display >= n {
		return image.Rectangle{}, fmt.Errorf("%w: display %d not in [0,%d)", ErrInvalidRegion, display, n)
	}
	return screenshot.GetDisplayBounds(display), nil
}

// ScreenSource captures a screen region with kbinani/screenshot
type ScreenSource struct {
	rect image.Rectangle
}

// NewScreenSource validates the region against the display bounds
func NewScreenSource(cfg CaptureConfig) (*ScreenSource, error) {
	area, err := displayBounds(cfg.Display)
	if err != nil {
		return nil, err
	}
	rect, err := resolveRegion(cfg.Region, area)
	if err != nil {
		return nil, err
	}

	LogInfo("Screen capture on display %d, region %v", cfg.Display, rect)
	return &ScreenSource{rect: rect}, nil
}

// Capture grabs the region
func (s *ScreenSource) Capture(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := screenshot.CaptureRect(s.rect)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCaptureUnavailable, err)
	}
	return NewFrame(img)
}

// Close is a no-op for the screen backend
func (s *ScreenSource) Close() error {
	return nil
}

// RobotSource captures a screen region with robotgo
type RobotSource struct {
	rect image.Rectangle
}

// NewRobotSource validates the region against the display bounds
func NewRobotSource(cfg CaptureConfig) (*RobotSource, error) {
	area, err := displayBounds(cfg.Display)
	if err != nil {
		return nil, err
	}
	rect, err := resolveRegion(cfg.Region, area)
	if err != nil {
		return nil, err
	}

	LogInfo("Robotgo capture on display %d, region %v", cfg.Display, rect)
	return &RobotSource{rect: rect}, nil
}

// Capture grabs the region
func (s *RobotSource) Capture(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bitmap := robotgo.CaptureScreen(s.rect.Min.X, s.rect.Min.Y, s.rect.Dx(), s.rect.Dy())
	defer robotgo.FreeBitmap(bitmap)

	img := robotgo.ToImage(bitmap)
	if img == nil {
		return nil, fmt.Errorf("%w: robotgo returned no image", ErrCaptureUnavailable)
	}
	return NewFrame(img)
}

// Close is a no-op for the robotgo backend
func (s *RobotSource) Close() error {
	return nil
}

// ScreenSize returns the primary screen size used for template scaling
func ScreenSize(backend string, display int) image.Point {
	if backend == "robotgo" {
		w, h := robotgo.GetScreenSize()
		return image.Pt(w, h)
	}
	bounds, err := displayBounds(display)
	if err != nil {
		return image.Point{}
	}
	return bounds.Size()
}
