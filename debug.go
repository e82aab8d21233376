// Package main - debug.go
//
// This file implements logging and the debug view for the bot.
//
// Major Components:
//
// 1. Logging System:
//    - zerolog logger writing JSON lines to Debug.log and a console view to stderr
//    - Four log levels used by the bot: DEBUG, INFO, WARN, ERROR
//    - File is truncated (cleared) on each startup
//    - Global logger accessible via LogDebug/LogInfo/LogWarn/LogError
//
// 2. Debug View:
//    - OpenCV window showing the captured frame
//    - Sprite match box (green), look-ahead window (red), sky band (blue)
//    - Decision, scene mode and foreground count drawn as text
//    - Rendered by a worker goroutine so the main loop never waits on the GUI
//
// Logging Best Practices:
//   - DEBUG: Per-cycle details (scores, pixel counts, timing)
//   - INFO: Lifecycle events (startup, sprite found, restarts, shutdown)
//   - WARN: Degraded conditions (verify failed, key emission failed)
//   - ERROR: Fatal conditions (capture unavailable, template load failure)
package main

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"
)

var logFile *os.File

// InitLogger initializes the global logger to write to the given file and stderr.
// The log file is truncated (cleared) on each startup.
func InitLogger(path, level string) error {
	writers := []io.Writer{zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}}

	if path != "" {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0666)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		logFile = file
		writers = append(writers, file)
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(lvl).
		With().
		Timestamp().
		Logger()

	LogInfo("Logger initialized (log file cleared)")
	return nil
}

// CloseLogger closes the log file
func CloseLogger() {
	if logFile != nil {
		LogInfo("Logger closing")
		logFile.Close()
		logFile = nil
	}
}

// LogDebug is a convenience function for debug logging
func LogDebug(format string, v ...interface{}) {
	log.Debug().Msgf(format, v...)
}

// LogInfo is a convenience function for info logging
func LogInfo(format string, v ...interface{}) {
	log.Info().Msgf(format, v...)
}

// LogWarn is a convenience function for warning logging
func LogWarn(format string, v ...interface{}) {
	log.Warn().Msgf(format, v...)
}

// LogError is a convenience function for error logging
func LogError(format string, v ...interface{}) {
	log.Error().Msgf(format, v...)
}

var (
	colorSprite = color.RGBA{0, 255, 0, 255}
	colorWindow = color.RGBA{255, 0, 0, 255}
	colorSky    = color.RGBA{0, 128, 255, 255}
	colorText   = color.RGBA{255, 0, 255, 255}
)

// annotateFrame draws the match, look-ahead window and decision onto a BGR frame.
// match may be nil when the sprite was not found.
func annotateFrame(mat *gocv.Mat, match *MatchResult, analysis Analysis) {
	if match == nil {
		gocv.PutText(mat, "sprite not found", image.Pt(10, 20),
			gocv.FontHersheyPlain, 1.2, colorText, 2)
		return
	}

	gocv.Rectangle(mat, match.Rect(), colorSprite, 2)
	if !analysis.Sky.Empty() {
		gocv.Rectangle(mat, analysis.Sky, colorSky, 1)
	}
	if !analysis.Window.Empty() {
		gocv.Rectangle(mat, analysis.Window, colorWindow, 2)
	}

	text := fmt.Sprintf("%s %.2f | %s | fg=%d | %s",
		match.Template, match.Score, analysis.Mode, analysis.Foreground, analysis.Decision)
	gocv.PutText(mat, text, image.Pt(10, 20), gocv.FontHersheyPlain, 1.2, colorText, 2)
}

// debugRequest is one frame handed to the debug view worker
type debugRequest struct {
	frame    gocv.Mat
	match    *MatchResult
	analysis Analysis
}

// DebugView renders annotated frames in an OpenCV window from a worker goroutine.
//
// Frames are cloned by Submit and owned by the worker afterwards. When the
// worker is still busy with a previous frame the new one is dropped.
type DebugView struct {
	requests chan *debugRequest
	done     chan struct{}
	limiter  *RateLimiter
	once     sync.Once
}

// NewDebugView starts the debug view worker
func NewDebugView() *DebugView {
	dv := &DebugView{
		requests: make(chan *debugRequest, 1),
		done:     make(chan struct{}),
		limiter:  NewRateLimiter(33 * time.Millisecond),
	}
	SafeGo("debug view", dv.worker)
	return dv
}

// Submit queues a frame for display without blocking the caller
func (dv *DebugView) Submit(frame *Frame, match *MatchResult, analysis Analysis) {
	if dv == nil || frame == nil || !dv.limiter.Allow() {
		return
	}

	req := &debugRequest{frame: frame.Color.Clone(), analysis: analysis}
	if match != nil {
		m := *match
		req.match = &m
	}

	select {
	case dv.requests <- req:
	default:
		req.frame.Close()
		LogDebug("Debug view is busy, skipping this frame")
	}
}

// Close stops the worker and waits for the window to close
func (dv *DebugView) Close() {
	if dv == nil {
		return
	}
	dv.once.Do(func() {
		close(dv.requests)
		<-dv.done
	})
}

func (dv *DebugView) worker() {
	defer close(dv.done)
	LogInfo("Debug view worker started")
	defer LogInfo("Debug view worker stopped")

	window := gocv.NewWindow("dino-bot debug")
	defer window.Close()

	for req := range dv.requests {
		annotateFrame(&req.frame, req.match, req.analysis)
		window.IMShow(req.frame)
		window.WaitKey(1)
		req.frame.Close()
	}
}
