// Package main - locator.go
//
// This file implements the sprite locator: normalized template matching of
// every registered template against the captured frame.
//
// Algorithm:
//   1. For each template in registration order, skip it if it does not fit
//      in the frame
//   2. MatchTemplate with TmCcoeffNormed on the BGR frame
//   3. MinMaxLoc peak of the result is the template's best location
//   4. The global peak wins; a later template replaces the current best only
//      when it scores more than tieEpsilon higher, so equal scores keep the
//      earlier template and the pose does not flicker
//   5. A peak below the minimum confidence is NotFound
//
// The locator keeps no state between frames: every cycle re-detects the
// sprite from scratch.
package main

import (
	"math"

	"gocv.io/x/gocv"
)

// tieEpsilon is the score margin a later template needs to replace the current best
const tieEpsilon = 1e-6

// Locator finds the player sprite in a frame
type Locator struct {
	templates     TemplateSet
	minConfidence float64
}

// NewLocator creates a locator over a loaded template set
func NewLocator(templates TemplateSet, cfg MatchConfig) *Locator {
	return &Locator{
		templates:     templates,
		minConfidence: cfg.MinConfidence,
	}
}

// Locate returns the best match if it is trusted.
//
// Returns:
//   - MatchResult: Best match (also filled in when not trusted, for logging)
//   - bool: true if the score reaches the minimum confidence
func (l *Locator) Locate(frame *Frame) (MatchResult, bool) {
	best, ok := l.Best(frame)
	if !ok {
		return best, false
	}
	return best, Trusted(best.Score, l.minConfidence)
}

// Trusted reports whether a match score reaches the minimum confidence
func Trusted(score, minConfidence float64) bool {
	return score >= minConfidence
}

// Best returns the highest scoring match regardless of confidence. ok is
// false when no template fits in the frame.
func (l *Locator) Best(frame *Frame) (best MatchResult, ok bool) {
	frameSize := frame.Bounds().Size()

	result := gocv.NewMat()
	defer result.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	for _, t := range l.templates {
		if t.Size.X > frameSize.X || t.Size.Y > frameSize.Y {
			LogDebug("Template %s (%v) larger than frame %v, skipped", t.Name, t.Size, frameSize)
			continue
		}

		gocv.MatchTemplate(frame.Color, t.Mat, &result, gocv.TmCcoeffNormed, mask)
		_, maxVal, _, maxLoc := gocv.MinMaxLoc(result)

		score := float64(maxVal)
		if math.IsNaN(score) {
			score = 0
		}

		if !ok || score > best.Score+tieEpsilon {
			best = MatchResult{
				Template: t.Name,
				Pose:     t.Pose,
				Location: maxLoc,
				Size:     t.Size,
				Score:    score,
			}
			ok = true
		}
	}
	return best, ok
}
