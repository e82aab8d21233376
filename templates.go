// Package main - templates.go
//
// This file loads the sprite templates once at startup.
//
// Template Sources:
//   - Embedded assets (assets/<name>.png) for the running and ducking sprite
//     in the day and night palettes
//   - A configured path overrides the embedded asset; PNG, BMP and WebP are
//     accepted
//
// Scaling:
// Embedded templates were cut on a 1920x1080 screen. When a reference size is
// configured and the capture screen differs, each template is resized by the
// screen/reference ratio per axis (truncated, never below one pixel) using box
// resampling.
//
// Lifetime:
// Templates are immutable after LoadTemplates returns and are shared read-only
// by every cycle. Close releases their Mats at shutdown.
package main

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"os"

	"github.com/disintegration/gift"
	"gocv.io/x/gocv"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

//go:embed assets/*.png
var embeddedAssets embed.FS

// ErrNoTemplates is returned when no sprite template is configured or loadable.
var ErrNoTemplates = errors.New("no sprite templates")

// Template is one reference sprite image
type Template struct {
	Name string
	Pose Pose
	Mat  gocv.Mat // BGR
	Size image.Point
}

// NewTemplate converts an image into a template
func NewTemplate(name string, pose Pose, img image.Image) (*Template, error) {
	rgba := toRGBA(img)
	if rgba.Rect.Empty() {
		return nil, fmt.Errorf("template %s is empty", name)
	}

	mat, err := gocv.ImageToMatRGB(rgba)
	if err != nil {
		return nil, fmt.Errorf("failed to convert template %s: %w", name, err)
	}

	return &Template{
		Name: name,
		Pose: pose,
		Mat:  mat,
		Size: rgba.Rect.Size(),
	}, nil
}

// Close releases the template Mat
func (t *Template) Close() {
	t.Mat.Close()
}

// TemplateSet is the ordered set of templates. Order is registration order.
type TemplateSet []*Template

// Close releases every template
func (ts TemplateSet) Close() {
	for _, t := range ts {
		t.Close()
	}
}

// LoadTemplates loads, scales and converts the configured templates.
//
// Parameters:
//   - cfgs: Templates in registration order
//   - match: Reference size for scaling
//   - screen: Capture screen size, zero disables scaling
func LoadTemplates(cfgs []TemplateConfig, match MatchConfig, screen image.Point) (TemplateSet, error) {
	if len(cfgs) == 0 {
		return nil, ErrNoTemplates
	}

	set := make(TemplateSet, 0, len(cfgs))
	for _, tc := range cfgs {
		img, err := readTemplateImage(tc)
		if err != nil {
			set.Close()
			return nil, err
		}

		img = scaleTemplate(img, match, screen)

		t, err := NewTemplate(tc.Name, tc.Pose, img)
		if err != nil {
			set.Close()
			return nil, err
		}
		LogInfo("Template %s (%s) loaded: %dx%d", t.Name, t.Pose, t.Size.X, t.Size.Y)
		set = append(set, t)
	}
	return set, nil
}

// readTemplateImage decodes the template from its path or the embedded assets
func readTemplateImage(tc TemplateConfig) (image.Image, error) {
	var (
		data []byte
		err  error
	)
	if tc.Path != "" {
		data, err = os.ReadFile(tc.Path)
	} else {
		data, err = embeddedAssets.ReadFile("assets/" + tc.Name + ".png")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", tc.Name, err)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode template %s: %w", tc.Name, err)
	}
	LogDebug("Template %s decoded as %s", tc.Name, format)
	return img, nil
}

// scaledSize computes the template size for a screen, truncating like an
// integer cast and never returning less than one pixel
func scaledSize(size image.Point, match MatchConfig, screen image.Point) image.Point {
	if match.ReferenceWidth <= 0 || match.ReferenceHeight <= 0 || screen.X <= 0 || screen.Y <= 0 {
		return size
	}
	w := size.X * screen.X / match.ReferenceWidth
	h := size.Y * screen.Y / match.ReferenceHeight
	return image.Pt(max(1, w), max(1, h))
}

// scaleTemplate resizes img to the capture screen if needed
func scaleTemplate(img image.Image, match MatchConfig, screen image.Point) image.Image {
	size := img.Bounds().Size()
	target := scaledSize(size, match, screen)
	if target == size {
		return img
	}

	g := gift.New(gift.Resize(target.X, target.Y, gift.BoxResampling))
	dst := image.NewRGBA(g.Bounds(img.Bounds()))
	g.Draw(dst, img)

	LogDebug("Template scaled %v -> %v", size, target)
	return dst
}
