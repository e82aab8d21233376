// Package main implements a bot that plays the Chrome offline Dino game.
//
// Architecture Overview:
// The bot watches a fixed region of the screen (or a chromedp controlled
// Chrome tab), finds the dinosaur by template matching, looks at a small
// window in front of it and presses jump or duck. The program consists of
// three concurrent components:
//
//   1. Main Loop Goroutine: Runs the capture -> locate -> decide -> act
//      pipeline. Each iteration completes before the next one starts.
//
//   2. System Tray: Runs on the main goroutine (required by systray) and
//      offers pause, scene override, debug view and quit.
//
//   3. Debug View Worker: Renders annotated frames in an OpenCV window when
//      debug is enabled. Frames are handed over through a buffered channel.
//
// Main Loop Logic:
// Each iteration performs the following steps in sequence:
//   1. Capture the region (fatal on failure)
//   2. Locate the sprite; NotFound means no action this cycle
//   3. Select day or night for this cycle
//   4. Binarize the look-ahead window and count foreground pixels
//   5. Map the count to none / jump / duck and apply it
//   6. Let the watchdog restart a frozen game
//
// Exit Codes:
//   0 - Clean interrupt (SIGINT/SIGTERM) or tray Quit
//   1 - Fatal setup or capture failure
//   2 - Panic
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/getlantern/systray"
	"github.com/rs/zerolog/log"
)

const (
	exitOK    = 0
	exitFatal = 1
	exitPanic = 2
)

// pausePoll is how often a paused loop checks for resume or cancellation
const pausePoll = 100 * time.Millisecond

// Bot represents the main bot controller and orchestrates all subsystems.
//
// Component Dependencies:
//   - config: Read-only configuration
//   - source: Frame source (screen, robotgo or browser)
//   - locator: Sprite template matching
//   - analyzer: Look-ahead window, scene mode and decision
//   - actuator: Key events for decisions
//   - watchdog: Restart of a frozen game
//   - status/stats: Runner state and counters for the tray
//   - browser: Chromedp controller, nil unless Chrome was opened
type Bot struct {
	config    *Config
	source    FrameSource
	templates TemplateSet
	locator   *Locator
	analyzer  *Analyzer
	actuator  *Actuator
	watchdog  *Watchdog
	status    *RunnerStatus
	stats     *Statistics
	browser   *Browser

	// Owned by the loop goroutine
	debugView *DebugView

	// Tray controlled
	paused       atomic.Bool
	debugEnabled atomic.Bool

	notFoundLog *RateLimiter
}

// NewBot wires the pipeline around a frame source, a key emitter and a loaded
// template set
func NewBot(config *Config, source FrameSource, keys KeyEmitter, templates TemplateSet) *Bot {
	b := &Bot{
		config:      config,
		source:      source,
		templates:   templates,
		locator:     NewLocator(templates, config.Match),
		analyzer:    NewAnalyzer(config),
		actuator:    NewActuator(keys, config.Keys),
		watchdog:    NewWatchdog(config.Watchdog),
		status:      NewRunnerStatus(),
		stats:       NewStatistics(),
		notFoundLog: NewRateLimiter(2 * time.Second),
	}
	b.debugEnabled.Store(config.Debug)
	return b
}

// SetupBot creates the real backends for the configuration.
//
// Startup Sequence:
//  1. Open Chrome at the game URL if requested (or required by the backend)
//  2. Create and validate the frame source
//  3. Pick the key emitter (DevTools for the browser backend, robotgo otherwise)
//  4. Load and scale the templates
func SetupBot(config *Config) (*Bot, error) {
	var browser *Browser
	if config.Capture.Backend == "browser" || config.Browser.Open {
		browser = NewBrowser(config.Browser)
		if err := browser.Start(); err != nil {
			browser.Close()
			return nil, err
		}
	}

	cleanup := func() {
		if browser != nil {
			browser.Close()
		}
	}

	var (
		source FrameSource
		keys   KeyEmitter
		screen = ScreenSize(config.Capture.Backend, config.Capture.Display)
		err    error
	)
	switch config.Capture.Backend {
	case "browser":
		if err = browser.UseRegion(config.Capture.Region); err == nil {
			source, keys = browser, browser
		}
		// Page content does not follow the display resolution
		screen = image.Point{}
	case "robotgo":
		source, err = NewRobotSource(config.Capture)
		keys = NewRobotKeyboard()
	default:
		source, err = NewScreenSource(config.Capture)
		keys = NewRobotKeyboard()
	}
	if err != nil {
		cleanup()
		return nil, err
	}

	if browser != nil && config.Capture.Backend != "browser" {
		if err := browser.BringToFront(); err != nil {
			LogWarn("Failed to bring the game tab to front: %v", err)
		}
	}

	templates, err := LoadTemplates(config.Templates, config.Match, screen)
	if err != nil {
		cleanup()
		return nil, err
	}

	bot := NewBot(config, source, keys, templates)
	bot.browser = browser
	return bot, nil
}

// Close releases keys, windows, templates and the browser
func (b *Bot) Close() {
	if err := b.actuator.ReleaseAll(); err != nil {
		LogWarn("Failed to release keys: %v", err)
	}
	b.debugView.Close()
	b.debugView = nil

	if b.source != nil && FrameSource(b.browser) != b.source {
		b.source.Close()
	}
	if b.browser != nil {
		b.browser.Close()
	}
	b.templates.Close()
}

// SetPaused pauses or resumes the loop
func (b *Bot) SetPaused(paused bool) {
	b.paused.Store(paused)
	b.status.SetPaused(paused)
}

// Paused reports whether the loop is paused
func (b *Bot) Paused() bool {
	return b.paused.Load()
}

// SetDebug enables or disables the debug view
func (b *Bot) SetDebug(enabled bool) {
	b.debugEnabled.Store(enabled)
	LogInfo("Debug view enabled: %v", enabled)
}

// DebugEnabled reports whether the debug view is on
func (b *Bot) DebugEnabled() bool {
	return b.debugEnabled.Load()
}

// StatusLine formats the tray status
func (b *Bot) StatusLine() string {
	jumps, ducks, restarts, uptime := b.stats.GetStats()
	return fmt.Sprintf("%s | %d jumps | %d ducks | %d restarts | %s",
		b.status.State(), jumps, ducks, restarts, uptime)
}

// VerifySprite waits, then checks once that the sprite is on screen.
// It only warns: the game may be opened by hand later.
func (b *Bot) VerifySprite(ctx context.Context, wait time.Duration) bool {
	LogInfo("Waiting %v for the game to appear...", wait)
	select {
	case <-ctx.Done():
		return false
	case <-time.After(wait):
	}

	frame, err := b.source.Capture(ctx)
	if err != nil {
		LogWarn("Verify capture failed: %v", err)
		return false
	}
	defer frame.Close()

	match, found := b.locator.Locate(frame)
	if !found {
		LogWarn("Could not detect the Dino game (best %s %.2f)", match.Template, match.Score)
		LogWarn("Open chrome://dino manually and keep the game visible in the capture region")
		LogWarn("Click the Dino tab so that key presses reach the game")
		return false
	}
	LogInfo("Dino game detected at %v (%s %.2f)", match.Location, match.Template, match.Score)
	return true
}

// Run executes the main loop until ctx is cancelled or a fatal error occurs.
// A cancelled context is a clean stop and returns nil.
func (b *Bot) Run(ctx context.Context) error {
	LogInfo("Main loop started")
	defer LogInfo("Main loop stopped")
	defer func() {
		if err := b.actuator.ReleaseAll(); err != nil {
			LogWarn("Failed to release keys: %v", err)
		}
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		if err := b.runIteration(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if interval := b.config.Capture.Interval; interval > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(interval):
			}
		}
	}
}

// runIteration executes a single capture -> locate -> decide -> act cycle.
// Only a capture failure is returned; everything else is logged.
func (b *Bot) runIteration(ctx context.Context) error {
	if b.paused.Load() {
		if err := b.actuator.ReleaseAll(); err != nil {
			LogWarn("Failed to release keys: %v", err)
		}
		select {
		case <-ctx.Done():
		case <-time.After(pausePoll):
		}
		return nil
	}

	timer := NewTimer("iteration")
	defer timer.Log()

	frame, err := b.source.Capture(ctx)
	if err != nil {
		return fmt.Errorf("capture failed: %w", err)
	}
	defer frame.Close()

	match, found := b.locator.Locate(frame)
	b.status.Observe(found)

	var (
		matched  *MatchResult
		analysis Analysis
	)
	if found {
		matched = &match
		b.notFoundLog.Reset()
		mode := b.analyzer.SelectMode(frame, match)
		analysis = b.analyzer.Decide(frame, matched, mode)
		log.Debug().
			Str("template", match.Template).
			Float64("score", match.Score).
			Str("mode", analysis.Mode.String()).
			Int("fg", analysis.Foreground).
			Str("decision", analysis.Decision.String()).
			Msg("cycle")
	} else {
		analysis = b.analyzer.Decide(frame, nil, SceneDay)
		if b.notFoundLog.Allow() {
			LogDebug("Sprite not found (best %s %.2f)", match.Template, match.Score)
		}
	}

	b.stats.AddCycle(found)

	if err := b.actuator.Apply(analysis.Decision); err != nil {
		LogWarn("Key emission failed: %v", err)
	} else if analysis.Decision != DecisionNone {
		b.watchdog.NoteAction()
	}
	b.stats.AddAction(b.actuator.Started())

	if b.status.Seen() && b.watchdog.Check(frame.Image) {
		LogInfo("Game frozen, pressing %s ...", b.config.Keys.Jump)
		if err := b.actuator.Restart(); err != nil {
			LogWarn("Restart failed: %v", err)
		} else {
			b.stats.AddRestart()
		}
	}

	b.updateDebugView(frame, matched, analysis)
	return nil
}

// updateDebugView opens, feeds or closes the debug view to follow the toggle
func (b *Bot) updateDebugView(frame *Frame, match *MatchResult, analysis Analysis) {
	if !b.debugEnabled.Load() {
		if b.debugView != nil {
			b.debugView.Close()
			b.debugView = nil
		}
		return
	}
	if b.debugView == nil {
		b.debugView = NewDebugView()
	}
	b.debugView.Submit(frame, match, analysis)
}

// options holds the command line flags
type options struct {
	configPath string
	backend    string
	screen     int
	openChrome bool
	chromePath string
	debug      bool
	noTray     bool
	train      string
	trainOut   string
	set        map[string]bool
}

// parseFlags parses the command line
func parseFlags(args []string, output io.Writer) (*options, error) {
	opts := &options{set: make(map[string]bool)}

	fs := flag.NewFlagSet("dino-bot", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&opts.configPath, "config", DefaultConfigFile, "path to the YAML config file")
	fs.StringVar(&opts.backend, "backend", "", "capture backend: screen, robotgo or browser")
	fs.IntVar(&opts.screen, "screen", 0, "monitor index to capture")
	fs.BoolVar(&opts.openChrome, "open-chrome", false, "open chrome://dino on startup")
	fs.StringVar(&opts.chromePath, "chrome-path", "", "path to the Chrome binary")
	fs.BoolVar(&opts.debug, "debug", false, "show the debug view")
	fs.BoolVar(&opts.noTray, "no-tray", false, "run without the system tray")
	fs.StringVar(&opts.train, "train", "", "run detection on a screenshot and exit")
	fs.StringVar(&opts.trainOut, "train-out", "result.png", "annotated output of -train")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	fs.Visit(func(f *flag.Flag) {
		opts.set[f.Name] = true
	})
	return opts, nil
}

// apply overrides the configuration with the flags given on the command line
func (o *options) apply(config *Config) {
	if o.set["backend"] {
		config.Capture.Backend = o.backend
	}
	if o.set["screen"] {
		config.Capture.Display = o.screen
	}
	if o.set["open-chrome"] {
		config.Browser.Open = o.openChrome
	}
	if o.set["chrome-path"] {
		config.Browser.ExecPath = o.chromePath
	}
	if o.set["debug"] {
		config.Debug = o.debug
	}
	if o.set["no-tray"] {
		config.Tray = !o.noTray
	}
}

// run is the program body; it returns the process exit code
func run(args []string) int {
	opts, err := parseFlags(args, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitFatal
	}

	config, err := LoadConfig(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return exitFatal
	}
	opts.apply(config)
	if err := config.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return exitFatal
	}

	if err := InitLogger(config.Log.File, config.Log.Level); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return exitFatal
	}
	defer func() {
		LogInfo("=== Dino Bot Shutdown ===")
		CloseLogger()
	}()

	LogInfo("=== Dino Bot Started ===")

	if opts.train != "" {
		LogInfo("Training mode requested")
		if err := TrainingMode(config, opts.train, opts.trainOut); err != nil {
			LogError("Training mode failed: %v", err)
			return exitFatal
		}
		return exitOK
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bot, err := SetupBot(config)
	if err != nil {
		LogError("Setup failed: %v", err)
		return exitFatal
	}
	defer bot.Close()

	if bot.browser != nil {
		bot.VerifySprite(ctx, config.Browser.VerifyWait)
	}

	if !config.Tray {
		if err := bot.Run(ctx); err != nil {
			LogError("Bot stopped: %v", err)
			return exitFatal
		}
		return exitOK
	}

	return runWithTray(ctx, stop, bot)
}

// runWithTray runs the loop in a goroutine while the tray owns the main goroutine.
// done is closed without a value when the loop panics.
func runWithTray(ctx context.Context, stop context.CancelFunc, bot *Bot) int {
	done := make(chan error, 1)
	SafeGo("main loop", func() {
		defer close(done)
		defer systray.Quit()
		done <- bot.Run(ctx)
	})

	NewTrayApp(bot, stop).Run()
	stop()

	err, ok := <-done
	if !ok {
		LogError("Main loop panicked")
		return exitPanic
	}
	if err != nil {
		LogError("Bot stopped: %v", err)
		return exitFatal
	}
	return exitOK
}

func main() {
	// Recover from panics
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "PANIC: %v\n", r)
			LogError("PANIC in main: %v", r)
			CloseLogger()
			os.Exit(exitPanic)
		}
	}()

	os.Exit(run(os.Args[1:]))
}
