// Package main - data.go
//
// This file defines core data structures used throughout the bot application.
// It provides geometric primitives, the perception result types, configuration,
// and statistics.
//
// Major Data Categories:
//
// 1. Geometric Types:
//    - Bounds: Rectangles in screen or frame space (origin + size)
//
// 2. Perception Results:
//    - Pose: Which sprite template matched (running, ducking)
//    - MatchResult: Best template location and score for one frame
//    - SceneMode: Day or night palette, selects the binarization strategy
//    - Decision: None, Jump or Duck
//    - Analysis: Everything the decision engine computed for one cycle
//
// 3. Configuration:
//    - Config: All bot settings, grouped per component (capture, match,
//      look-ahead, scene, decision, keys, watchdog, browser, log)
//    - NewConfig returns calibrated defaults for the Chrome Dino game
//
// 4. Statistics:
//    - Statistics: Cycle, jump, duck and restart counters plus uptime
//      (jumps and ducks count key actions, not cycles)
//
// Thread Safety:
// Config is read-only after startup. Statistics uses a RWMutex because the
// tray reads it while the main loop writes it.
package main

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"time"
)

// ErrInvalidConfig is returned by Config.Validate for unusable settings.
var ErrInvalidConfig = errors.New("invalid config")

// Bounds represents a rectangular area
type Bounds struct {
	X int `yaml:"x"` // Top-left X coordinate
	Y int `yaml:"y"` // Top-left Y coordinate
	W int `yaml:"w"` // Width
	H int `yaml:"h"` // Height
}

// NewBounds creates a new Bounds
func NewBounds(x, y, w, h int) Bounds {
	return Bounds{X: x, Y: y, W: w, H: h}
}

// Rect converts the bounds to an image.Rectangle
func (b Bounds) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.W, b.Y+b.H)
}

// Empty reports whether the bounds cover no pixels
func (b Bounds) Empty() bool {
	return b.W <= 0 || b.H <= 0
}

// Size returns the area of the bounds
func (b Bounds) Size() int {
	if b.Empty() {
		return 0
	}
	return b.W * b.H
}

// Pose identifies the sprite pose a template represents
type Pose int

const (
	PoseRunning Pose = iota // Running or jumping
	PoseDucking             // Ducking under a bird
)

func (p Pose) String() string {
	switch p {
	case PoseRunning:
		return "running"
	case PoseDucking:
		return "ducking"
	default:
		return fmt.Sprintf("Pose(%d)", int(p))
	}
}

// UnmarshalText parses "running" or "ducking"
func (p *Pose) UnmarshalText(text []byte) error {
	switch string(text) {
	case "running", "":
		*p = PoseRunning
	case "ducking":
		*p = PoseDucking
	default:
		return fmt.Errorf("%w: unknown pose %q", ErrInvalidConfig, text)
	}
	return nil
}

// MatchResult is the best-scoring template location within a frame.
type MatchResult struct {
	Template string
	Pose     Pose
	Location image.Point // Top-left corner of the match
	Size     image.Point // Template width and height
	Score    float64     // Normalized correlation, 1.0 is a perfect match
}

// Rect returns the matched sprite rectangle in frame coordinates
func (m MatchResult) Rect() image.Rectangle {
	return image.Rectangle{Min: m.Location, Max: m.Location.Add(m.Size)}
}

// Decision is the discrete action chosen for one cycle
type Decision int

const (
	DecisionNone Decision = iota
	DecisionJump
	DecisionDuck
)

func (d Decision) String() string {
	switch d {
	case DecisionNone:
		return "none"
	case DecisionJump:
		return "jump"
	case DecisionDuck:
		return "duck"
	default:
		return fmt.Sprintf("Decision(%d)", int(d))
	}
}

// SceneMode selects the binarization strategy for a cycle
type SceneMode int

const (
	SceneDay SceneMode = iota
	SceneNight
)

func (m SceneMode) String() string {
	if m == SceneNight {
		return "night"
	}
	return "day"
}

// SceneSetting is the configured scene mode: auto detection or a fixed mode
type SceneSetting string

const (
	SceneAuto       SceneSetting = "auto"
	SceneFixedDay   SceneSetting = "day"
	SceneFixedNight SceneSetting = "night"
)

// Polarity says which side of the threshold counts as foreground
type Polarity string

const (
	PolarityDark  Polarity = "dark"  // pixels at or below the threshold
	PolarityLight Polarity = "light" // pixels above the threshold
)

// Analysis holds everything the decision engine computed for one cycle
type Analysis struct {
	Window     image.Rectangle
	Sky        image.Rectangle // Band used for the day/night check
	Mode       SceneMode
	Foreground int
	Decision   Decision
}

// CaptureConfig configures the frame source
type CaptureConfig struct {
	Backend  string        `yaml:"backend"` // "screen", "robotgo" or "browser"
	Display  int           `yaml:"display"` // Monitor index for native backends
	Region   Bounds        `yaml:"region"`  // Relative to the display, zero size = whole display
	Interval time.Duration `yaml:"interval"`
}

// TemplateConfig registers one sprite template. Path overrides the embedded asset.
type TemplateConfig struct {
	Name string `yaml:"name"`
	Pose Pose   `yaml:"pose"`
	Path string `yaml:"path"`
}

// MatchConfig configures the sprite locator
type MatchConfig struct {
	MinConfidence   float64 `yaml:"min_confidence"`
	ReferenceWidth  int     `yaml:"reference_width"`  // Screen width templates were cut at, 0 = no scaling
	ReferenceHeight int     `yaml:"reference_height"` // Screen height templates were cut at, 0 = no scaling
}

// LookAheadConfig places the obstacle window relative to the sprite's right edge
type LookAheadConfig struct {
	OffsetX int `yaml:"offset_x"`
	OffsetY int `yaml:"offset_y"`
	Width   int `yaml:"width"`
	Height  int `yaml:"height"`
}

// SceneConfig configures day/night selection and both binarization strategies
type SceneConfig struct {
	Mode            SceneSetting `yaml:"mode"`
	DayRatio        float64      `yaml:"day_ratio"`         // Bright sky share above which the scene is day
	SkyMinIntensity uint8        `yaml:"sky_min_intensity"` // Gray level counted as bright sky
	DayThreshold    uint8        `yaml:"day_threshold"`
	DayPolarity     Polarity     `yaml:"day_polarity"`
	NightPolarity   Polarity     `yaml:"night_polarity"`
}

// DecisionConfig holds the foreground pixel count bands
type DecisionConfig struct {
	Low  int `yaml:"low"`  // count < Low: clear path
	High int `yaml:"high"` // count > High: jump, Low..High: duck
}

// KeyConfig holds key bindings
type KeyConfig struct {
	Jump     string        `yaml:"jump"`
	Duck     string        `yaml:"duck"`
	DuckHold time.Duration `yaml:"duck_hold"`
}

// WatchdogConfig configures the idle restart
type WatchdogConfig struct {
	Enabled     bool          `yaml:"enabled"`
	IdleReset   time.Duration `yaml:"idle_reset"`
	MaxDistance int           `yaml:"max_distance"` // Hash distance still considered a frozen frame
}

// BrowserConfig configures the chromedp controlled Chrome instance
type BrowserConfig struct {
	Open       bool          `yaml:"open"`
	URL        string        `yaml:"url"`
	ExecPath   string        `yaml:"exec_path"`
	Width      int           `yaml:"width"`
	Height     int           `yaml:"height"`
	VerifyWait time.Duration `yaml:"verify_wait"`
}

// LogConfig configures the logger
type LogConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

// Config holds bot configuration
type Config struct {
	Capture   CaptureConfig    `yaml:"capture"`
	Templates []TemplateConfig `yaml:"templates"`
	Match     MatchConfig      `yaml:"match"`
	LookAhead LookAheadConfig  `yaml:"look_ahead"`
	Scene     SceneConfig      `yaml:"scene"`
	Decision  DecisionConfig   `yaml:"decision"`
	Keys      KeyConfig        `yaml:"keys"`
	Watchdog  WatchdogConfig   `yaml:"watchdog"`
	Browser   BrowserConfig    `yaml:"browser"`
	Log       LogConfig        `yaml:"log"`
	Debug     bool             `yaml:"debug"`
	Tray      bool             `yaml:"tray"`
}

// NewConfig creates default configuration
func NewConfig() *Config {
	return &Config{
		Capture: CaptureConfig{
			Backend: "screen",
			Display: 0,
		},
		Templates: []TemplateConfig{
			{Name: "dino_day", Pose: PoseRunning},
			{Name: "dino_night", Pose: PoseRunning},
			{Name: "dino_duck_day", Pose: PoseDucking},
			{Name: "dino_duck_night", Pose: PoseDucking},
		},
		Match: MatchConfig{
			MinConfidence:   0.8,
			ReferenceWidth:  1920,
			ReferenceHeight: 1080,
		},
		LookAhead: LookAheadConfig{
			OffsetX: 20,
			OffsetY: 0,
			Width:   60,
			Height:  38,
		},
		Scene: SceneConfig{
			Mode:            SceneAuto,
			DayRatio:        0.5,
			SkyMinIntensity: 200,
			DayThreshold:    180,
			DayPolarity:     PolarityDark,
			NightPolarity:   PolarityLight,
		},
		Decision: DecisionConfig{
			Low:  40,
			High: 260,
		},
		Keys: KeyConfig{
			Jump:     "space",
			Duck:     "down",
			DuckHold: 400 * time.Millisecond,
		},
		Watchdog: WatchdogConfig{
			Enabled:     true,
			IdleReset:   7 * time.Second,
			MaxDistance: 0,
		},
		Browser: BrowserConfig{
			Open:       false,
			URL:        "chrome://dino",
			Width:      1280,
			Height:     720,
			VerifyWait: 5 * time.Second,
		},
		Log: LogConfig{
			File:  "Debug.log",
			Level: "info",
		},
		Tray: true,
	}
}

// Validate checks the settings that cannot be corrected at runtime
func (c *Config) Validate() error {
	switch c.Capture.Backend {
	case "screen", "robotgo", "browser":
	default:
		return fmt.Errorf("%w: unknown capture backend %q", ErrInvalidConfig, c.Capture.Backend)
	}
	if c.Capture.Region.W < 0 || c.Capture.Region.H < 0 {
		return fmt.Errorf("%w: negative capture region %+v", ErrInvalidConfig, c.Capture.Region)
	}
	if len(c.Templates) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, ErrNoTemplates)
	}
	if c.Match.MinConfidence <= 0 || c.Match.MinConfidence > 1 {
		return fmt.Errorf("%w: min_confidence %.2f outside (0,1]", ErrInvalidConfig, c.Match.MinConfidence)
	}
	if c.LookAhead.Width <= 0 || c.LookAhead.Height <= 0 {
		return fmt.Errorf("%w: look-ahead window %dx%d", ErrInvalidConfig, c.LookAhead.Width, c.LookAhead.Height)
	}
	switch c.Scene.Mode {
	case SceneAuto, SceneFixedDay, SceneFixedNight:
	default:
		return fmt.Errorf("%w: unknown scene mode %q", ErrInvalidConfig, c.Scene.Mode)
	}
	for _, p := range []Polarity{c.Scene.DayPolarity, c.Scene.NightPolarity} {
		if p != PolarityDark && p != PolarityLight {
			return fmt.Errorf("%w: unknown polarity %q", ErrInvalidConfig, p)
		}
	}
	if c.Decision.Low < 0 || c.Decision.Low > c.Decision.High {
		return fmt.Errorf("%w: decision bands low=%d high=%d", ErrInvalidConfig, c.Decision.Low, c.Decision.High)
	}
	if c.Keys.Jump == "" || c.Keys.Duck == "" {
		return fmt.Errorf("%w: jump and duck keys are required", ErrInvalidConfig)
	}
	if c.Keys.Jump == c.Keys.Duck {
		return fmt.Errorf("%w: jump and duck share key %q", ErrInvalidConfig, c.Keys.Jump)
	}
	return nil
}

// Statistics holds runtime statistics
type Statistics struct {
	StartTime time.Time
	Cycles    int
	Found     int
	Jumps     int
	Ducks     int
	Restarts  int
	mu        sync.RWMutex
}

// NewStatistics creates new statistics
func NewStatistics() *Statistics {
	return &Statistics{
		StartTime: time.Now(),
	}
}

// AddCycle records one loop iteration
func (s *Statistics) AddCycle(found bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Cycles++
	if found {
		s.Found++
	}
}

// AddAction records a jump tap or the start of a duck. Cycles that only keep
// a duck held are not counted.
func (s *Statistics) AddAction(started Decision) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch started {
	case DecisionJump:
		s.Jumps++
	case DecisionDuck:
		s.Ducks++
	}
}

// AddRestart records a watchdog restart
func (s *Statistics) AddRestart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Restarts++
}

// GetStats returns a snapshot for display
func (s *Statistics) GetStats() (jumps, ducks, restarts int, uptime string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.Jumps, s.Ducks, s.Restarts, FormatDuration(time.Since(s.StartTime))
}

// DetectionRate returns the share of cycles in which the sprite was found
func (s *Statistics) DetectionRate() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.Cycles == 0 {
		return 0
	}
	return float64(s.Found) / float64(s.Cycles)
}
