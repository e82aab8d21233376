// Package main - action.go
//
// This file implements the actuator: it turns a decision into synthetic key
// events and makes sure no key stays held across cycles.
//
// Key Responsibilities:
//   - KeyEmitter abstraction over the input backends
//   - Native keyboard via robotgo (KeyTap / KeyToggle)
//   - Jump as a tap, duck as a press-and-hold that is re-pressed every DuckHold
//     while the decision stays duck
//   - Release of any held key before a different action is issued
//
// Architecture:
// The browser backend implements KeyEmitter with DevTools key events (see
// browser.go), so the actuator works the same whether keys go to the OS or
// straight into the Chrome tab.
//
// Held Key Rules:
//   1. A held duck key is kept while the decision stays duck and the key has
//      been held for less than DuckHold; after that it is released and pressed
//      again
//   2. Any other decision releases the held key at once, before anything else
//      happens. DuckHold is not a minimum hold time.
//   3. A failed release keeps the key marked as held so the next cycle retries
package main

import (
	"fmt"
	"time"

	"github.com/go-vgo/robotgo"
)

// KeyMode represents keyboard action type
type KeyMode int

const (
	KeyPress   KeyMode = iota // Press and release
	KeyHold                   // Hold down
	KeyRelease                // Release held key
)

func (m KeyMode) String() string {
	switch m {
	case KeyPress:
		return "press"
	case KeyHold:
		return "hold"
	case KeyRelease:
		return "release"
	default:
		return fmt.Sprintf("KeyMode(%d)", int(m))
	}
}

// KeyEmitter sends one keyboard event
type KeyEmitter interface {
	SendKey(key string, mode KeyMode) error
}

// RobotKeyboard emits OS level key events through robotgo
type RobotKeyboard struct{}

// NewRobotKeyboard creates the native key emitter
func NewRobotKeyboard() *RobotKeyboard {
	return &RobotKeyboard{}
}

// SendKey sends a key event.
//
// Key names follow robotgo ("space", "down", "up", "enter", letters).
func (k *RobotKeyboard) SendKey(key string, mode KeyMode) error {
	var err error
	switch mode {
	case KeyPress:
		err = robotgo.KeyTap(key)
	case KeyHold:
		err = robotgo.KeyToggle(key, "down")
	case KeyRelease:
		err = robotgo.KeyToggle(key, "up")
	default:
		return fmt.Errorf("unknown key mode %v", mode)
	}
	if err != nil {
		return fmt.Errorf("robotgo %s %q: %w", mode, key, err)
	}
	return nil
}

// Actuator applies decisions as key events
type Actuator struct {
	keys      KeyEmitter
	cfg       KeyConfig
	held      string
	heldSince time.Time
	started   Decision // New action started by the last Apply
	now       func() time.Time
}

// NewActuator creates an actuator for the given emitter and bindings
func NewActuator(keys KeyEmitter, cfg KeyConfig) *Actuator {
	return &Actuator{
		keys: keys,
		cfg:  cfg,
		now:  time.Now,
	}
}

// Held returns the key currently held down, or "" if none
func (a *Actuator) Held() string {
	return a.held
}

// Started returns the action the last Apply started: DecisionJump for a tap,
// DecisionDuck for a duck that was not already under way, DecisionNone
// otherwise (no action, a kept or re-pressed duck, or a failed emission)
func (a *Actuator) Started() Decision {
	return a.started
}

// Apply issues the key events for a decision.
//
// Algorithm:
//   1. If a key is held: keep it when the decision is duck and the duck key
//      is still inside its hold time, otherwise release it
//   2. Jump: tap the jump key
//   3. Duck: press and hold the duck key
//   4. None: nothing more
func (a *Actuator) Apply(decision Decision) error {
	now := a.now()
	a.started = DecisionNone
	ducking := a.held != "" && a.held == a.cfg.Duck

	if a.held != "" {
		if decision == DecisionDuck && a.held == a.cfg.Duck && now.Sub(a.heldSince) < a.cfg.DuckHold {
			return nil
		}
		if err := a.release(); err != nil {
			return err
		}
	}

	switch decision {
	case DecisionJump:
		if err := a.keys.SendKey(a.cfg.Jump, KeyPress); err != nil {
			return fmt.Errorf("jump: %w", err)
		}
		a.started = DecisionJump
		LogDebug("Jump (%s)", a.cfg.Jump)
	case DecisionDuck:
		if err := a.keys.SendKey(a.cfg.Duck, KeyHold); err != nil {
			return fmt.Errorf("duck: %w", err)
		}
		a.held = a.cfg.Duck
		a.heldSince = now
		if !ducking {
			a.started = DecisionDuck
		}
		LogDebug("Duck (%s held)", a.cfg.Duck)
	}
	return nil
}

// Restart taps the jump key, which starts or restarts the game
func (a *Actuator) Restart() error {
	if err := a.ReleaseAll(); err != nil {
		return err
	}
	if err := a.keys.SendKey(a.cfg.Jump, KeyPress); err != nil {
		return fmt.Errorf("restart: %w", err)
	}
	return nil
}

// ReleaseAll releases any held key. Called at shutdown.
func (a *Actuator) ReleaseAll() error {
	if a.held == "" {
		return nil
	}
	return a.release()
}

func (a *Actuator) release() error {
	if err := a.keys.SendKey(a.held, KeyRelease); err != nil {
		return fmt.Errorf("release %s: %w", a.held, err)
	}
	LogDebug("Released %s after %v", a.held, a.now().Sub(a.heldSince))
	a.held = ""
	return nil
}
