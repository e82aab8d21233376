// Package main - analyzer.go
//
// Obstacle detector and decision engine for the Dino bot.
// Turns a located sprite into a jump, duck or no-op decision.
//
// Key responsibilities:
//   - Look-ahead window placement in front of the sprite, clipped to the frame
//   - Day/night scene selection (fixed setting or sky brightness heuristic)
//   - Binarization: fixed threshold by day, Otsu by night
//   - Foreground pixel counting and band classification
//
// Decision bands (configurable):
//   count <  low          -> none (clear path)
//   low <= count <= high  -> duck (low-clearance obstacle)
//   count >  high         -> jump (tall obstacle)
//
// Anchoring:
// The window and the sky band hang off the sprite's feet line (the bottom of
// the matched template) and its front edge. A ducking template is shorter and
// wider than a running one; anchoring at the feet keeps the window on the same
// rows in both poses, so a duck is not released just because the pose changed.
//
// The analyzer is stateless per cycle. The only mutable field is the scene
// setting, which the tray can change while the loop runs.
package main

import (
	"image"
	"sync/atomic"

	"gocv.io/x/gocv"
)

// Binarizer thresholds a grayscale window into a 0/255 mask
type Binarizer interface {
	Binarize(src gocv.Mat, dst *gocv.Mat)
}

// FixedThreshold binarizes at a calibrated level
type FixedThreshold struct {
	Level    uint8
	Polarity Polarity
}

// Binarize applies the fixed level
func (f FixedThreshold) Binarize(src gocv.Mat, dst *gocv.Mat) {
	gocv.Threshold(src, dst, float32(f.Level), 255, thresholdType(f.Polarity))
}

// OtsuThreshold binarizes at the level Otsu's method picks from the window histogram
type OtsuThreshold struct {
	Polarity Polarity
}

// Binarize applies Otsu's threshold
func (o OtsuThreshold) Binarize(src gocv.Mat, dst *gocv.Mat) {
	gocv.Threshold(src, dst, 0, 255, thresholdType(o.Polarity)|gocv.ThresholdOtsu)
}

// thresholdType maps a polarity to the OpenCV threshold type.
// Dark marks pixels <= level, light marks pixels > level.
func thresholdType(p Polarity) gocv.ThresholdType {
	if p == PolarityDark {
		return gocv.ThresholdBinaryInv
	}
	return gocv.ThresholdBinary
}

// Analyzer is the obstacle detector and decision engine
type Analyzer struct {
	lookAhead LookAheadConfig
	scene     SceneConfig
	bands     DecisionConfig
	day       Binarizer
	night     Binarizer
	setting   atomic.Value // SceneSetting
}

// NewAnalyzer creates an analyzer from configuration
func NewAnalyzer(cfg *Config) *Analyzer {
	a := &Analyzer{
		lookAhead: cfg.LookAhead,
		scene:     cfg.Scene,
		bands:     cfg.Decision,
		day:       FixedThreshold{Level: cfg.Scene.DayThreshold, Polarity: cfg.Scene.DayPolarity},
		night:     OtsuThreshold{Polarity: cfg.Scene.NightPolarity},
	}
	a.setting.Store(cfg.Scene.Mode)
	return a
}

// SceneSetting returns the current scene setting
func (a *Analyzer) SceneSetting() SceneSetting {
	return a.setting.Load().(SceneSetting)
}

// SetSceneSetting overrides the scene setting at runtime (tray menu)
func (a *Analyzer) SetSceneSetting(s SceneSetting) {
	a.setting.Store(s)
	LogInfo("Scene mode set to %s", s)
}

// Binarizer returns the strategy for a scene mode
func (a *Analyzer) Binarizer(mode SceneMode) Binarizer {
	if mode == SceneNight {
		return a.night
	}
	return a.day
}

// SelectMode picks exactly one scene mode for this cycle
func (a *Analyzer) SelectMode(frame *Frame, match MatchResult) SceneMode {
	switch a.SceneSetting() {
	case SceneFixedDay:
		return SceneDay
	case SceneFixedNight:
		return SceneNight
	}

	if a.IsDayScene(frame, match) {
		return SceneDay
	}
	return SceneNight
}

// skyBand returns the rows directly above the look-ahead rows, as tall as the
// window and as wide as the frame, clipped to the frame. It hangs off the feet
// line, so it does not move when the pose changes.
func skyBand(match MatchResult, height int, frame image.Rectangle) image.Rectangle {
	feet := match.Location.Y + match.Size.Y
	band := image.Rect(frame.Min.X, feet-2*height, frame.Max.X, feet-height)
	return band.Intersect(frame)
}

// SkyBand is skyBand for the configured window height
func (a *Analyzer) SkyBand(match MatchResult, frame image.Rectangle) image.Rectangle {
	return skyBand(match, a.lookAhead.Height, frame)
}

// IsDayScene reports whether the share of bright pixels in the sky band
// exceeds the configured day ratio. An empty band counts as night.
func (a *Analyzer) IsDayScene(frame *Frame, match MatchResult) bool {
	band := a.SkyBand(match, frame.Bounds())
	if band.Empty() {
		return false
	}

	region := frame.Gray.Region(band)
	defer region.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	// pixel > min-1 selects pixel >= min for 8-bit intensities
	gocv.Threshold(region, &mask, float32(a.scene.SkyMinIntensity)-1, 255, gocv.ThresholdBinary)
	bright := gocv.CountNonZero(mask)

	ratio := float64(bright) / float64(band.Dx()*band.Dy())
	LogDebug("Sky band %v bright ratio %.3f", band, ratio)
	return ratio > a.scene.DayRatio
}

// LookAheadWindow places the obstacle window right of the sprite's front edge,
// its bottom on the feet line, and clips it to the frame. The result may be empty.
func (a *Analyzer) LookAheadWindow(match MatchResult, frame image.Rectangle) image.Rectangle {
	x := match.Location.X + match.Size.X + a.lookAhead.OffsetX
	y := match.Location.Y + match.Size.Y - a.lookAhead.Height + a.lookAhead.OffsetY
	window := image.Rect(x, y, x+a.lookAhead.Width, y+a.lookAhead.Height)
	return window.Intersect(frame)
}

// CountForeground binarizes the window of a grayscale frame with the mode's
// strategy and counts the foreground pixels
func (a *Analyzer) CountForeground(gray gocv.Mat, window image.Rectangle, mode SceneMode) int {
	region := gray.Region(window)
	defer region.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	a.Binarizer(mode).Binarize(region, &mask)
	return gocv.CountNonZero(mask)
}

// Classify maps a foreground count to a decision
func Classify(count int, bands DecisionConfig) Decision {
	switch {
	case count < bands.Low:
		return DecisionNone
	case count > bands.High:
		return DecisionJump
	default:
		return DecisionDuck
	}
}

// Decide computes the decision for one cycle.
//
// A nil match (sprite not found) or an empty window yields DecisionNone
// without touching the frame.
func (a *Analyzer) Decide(frame *Frame, match *MatchResult, mode SceneMode) Analysis {
	result := Analysis{Mode: mode, Decision: DecisionNone}
	if match == nil {
		return result
	}

	result.Sky = a.SkyBand(*match, frame.Bounds())
	result.Window = a.LookAheadWindow(*match, frame.Bounds())
	if result.Window.Empty() {
		LogDebug("Look-ahead window is empty (sprite at %v)", match.Location)
		return result
	}

	result.Foreground = a.CountForeground(frame.Gray, result.Window, mode)
	result.Decision = Classify(result.Foreground, a.bands)
	return result
}
