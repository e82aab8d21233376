// Package main - tray.go
//
// This file implements the system tray UI for controlling the running bot.
// Uses getlantern/systray library for cross-platform tray menu support.
//
// Menu Structure:
//   Dino Bot
//   ├─ Status: State | Jumps | Ducks | Restarts | Uptime (read-only, refreshed every second)
//   ├─ Pause / Resume
//   ├─ Scene
//   │  ├─ Auto (sky brightness heuristic)
//   │  ├─ Day (fixed threshold)
//   │  └─ Night (Otsu threshold)
//   ├─ Debug View (checkbox)
//   └─ Quit (graceful shutdown)
//
// Concurrency Model:
// systray.Run owns the main goroutine. Click handlers run in one event
// goroutine and only touch the bot through its atomic setters, so the main
// loop never waits on the UI.
//
// Lifecycle:
//   1. NewTrayApp: Create instance with bot reference and the stop function
//   2. Run: Start systray (blocking call)
//   3. onReady: Initialize menu structure
//   4. handleEvents: Listen for user interactions until Quit
//   5. onExit: Stop the main loop
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/getlantern/systray"
)

// TrayApp manages the system tray application and user interface.
type TrayApp struct {
	bot  *Bot
	stop context.CancelFunc

	// Menu items
	statusItem *systray.MenuItem
	pauseItem  *systray.MenuItem
	debugItem  *systray.MenuItem
	quitItem   *systray.MenuItem

	// Scene items, indexed like sceneSettings
	sceneItems [3]*systray.MenuItem
}

// sceneSettings lists the scene menu entries in display order
var sceneSettings = [3]SceneSetting{SceneAuto, SceneFixedDay, SceneFixedNight}

// NewTrayApp creates a new tray application
func NewTrayApp(bot *Bot, stop context.CancelFunc) *TrayApp {
	return &TrayApp{
		bot:  bot,
		stop: stop,
	}
}

// Run starts the tray application and blocks until Quit
func (t *TrayApp) Run() {
	LogInfo("Starting system tray application")
	systray.Run(t.onReady, func() {
		LogInfo("System tray onExit callback triggered")
		t.stop()
		LogInfo("System tray exit complete")
	})
	LogInfo("System tray Run() returned")
}

// onReady is called when the tray is ready
func (t *TrayApp) onReady() {
	systray.SetTitle("Dino Bot")
	systray.SetTooltip("Chrome Dino Bot")

	// Status (read-only)
	t.statusItem = systray.AddMenuItem("Status: Starting...", "Current bot status")
	t.statusItem.Disable()

	systray.AddSeparator()

	t.pauseItem = systray.AddMenuItem("Pause", "Pause or resume the bot")

	sceneMenu := systray.AddMenuItem("Scene", "Select the scene mode")
	t.sceneItems[0] = sceneMenu.AddSubMenuItemCheckbox("Auto", "Detect day and night from the sky", false)
	t.sceneItems[1] = sceneMenu.AddSubMenuItemCheckbox("Day", "Always use the fixed threshold", false)
	t.sceneItems[2] = sceneMenu.AddSubMenuItemCheckbox("Night", "Always use Otsu's threshold", false)
	t.updateSceneCheckmarks()

	t.debugItem = systray.AddMenuItemCheckbox("Debug View", "Show the annotated capture", t.bot.DebugEnabled())

	systray.AddSeparator()
	t.quitItem = systray.AddMenuItem("Quit", "Stop the bot and exit")

	go t.handleEvents()
	go t.refreshStatus()
}

// handleEvents handles tray menu events
func (t *TrayApp) handleEvents() {
	for {
		select {
		case <-t.pauseItem.ClickedCh:
			t.onPauseClicked()
		case <-t.sceneItems[0].ClickedCh:
			t.onSceneClicked(0)
		case <-t.sceneItems[1].ClickedCh:
			t.onSceneClicked(1)
		case <-t.sceneItems[2].ClickedCh:
			t.onSceneClicked(2)
		case <-t.debugItem.ClickedCh:
			t.onDebugClicked()
		case <-t.quitItem.ClickedCh:
			LogInfo("Quit requested by user")
			t.stop()
			systray.Quit()
			return
		}
	}
}

// onPauseClicked toggles pause
func (t *TrayApp) onPauseClicked() {
	paused := !t.bot.Paused()
	t.bot.SetPaused(paused)
	if paused {
		t.pauseItem.SetTitle("Resume")
		LogInfo("Bot paused from tray")
	} else {
		t.pauseItem.SetTitle("Pause")
		LogInfo("Bot resumed from tray")
	}
	t.updateStatus()
}

// onSceneClicked handles scene mode selection
func (t *TrayApp) onSceneClicked(idx int) {
	t.bot.analyzer.SetSceneSetting(sceneSettings[idx])
	t.updateSceneCheckmarks()
}

// onDebugClicked toggles the debug view
func (t *TrayApp) onDebugClicked() {
	enabled := !t.bot.DebugEnabled()
	t.bot.SetDebug(enabled)
	if enabled {
		t.debugItem.Check()
	} else {
		t.debugItem.Uncheck()
	}
}

// updateSceneCheckmarks checks the active scene setting
func (t *TrayApp) updateSceneCheckmarks() {
	current := t.bot.analyzer.SceneSetting()
	for i, s := range sceneSettings {
		if s == current {
			t.sceneItems[i].Check()
		} else {
			t.sceneItems[i].Uncheck()
		}
	}
}

// refreshStatus updates the status line once per second
func (t *TrayApp) refreshStatus() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		t.updateStatus()
	}
}

// updateStatus updates the status display
func (t *TrayApp) updateStatus() {
	t.statusItem.SetTitle(fmt.Sprintf("Status: %s", t.bot.StatusLine()))
}
