// Package main - train.go
//
// Training/Testing mode for offline detection debugging.
// Runs the detection pipeline on a saved screenshot, draws the result and
// saves it next to the binarized look-ahead window.
//
// Usage:
//   1. Take a screenshot of the capture region (PNG, BMP or WebP)
//   2. Run: dino-bot -train screenshot.png [-train-out result.png]
//   3. Check result.png for the sprite box, sky band and look-ahead window
//   4. Check result_mask.png for the foreground pixels that were counted
//   5. Check Debug.log for scores and counts
//
// Templates are used at their stored size: a screenshot is already in
// screen pixels of the machine it was taken on.
package main

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"
)

// TrainResult is the outcome of one offline detection run
type TrainResult struct {
	Match    MatchResult
	Found    bool
	Analysis Analysis
}

// AnalyzeImage runs locate and decide on a single image
func AnalyzeImage(config *Config, templates TemplateSet, frame *Frame) TrainResult {
	locator := NewLocator(templates, config.Match)
	analyzer := NewAnalyzer(config)

	var result TrainResult
	result.Match, result.Found = locator.Locate(frame)
	if !result.Found {
		result.Analysis = analyzer.Decide(frame, nil, SceneDay)
		return result
	}

	mode := analyzer.SelectMode(frame, result.Match)
	result.Analysis = analyzer.Decide(frame, &result.Match, mode)
	return result
}

// TrainingMode runs offline detection on a screenshot
func TrainingMode(config *Config, inputPath, outputPath string) error {
	LogInfo("=== Training Mode Started ===")

	img, err := loadImage(inputPath)
	if err != nil {
		return err
	}
	LogInfo("Image loaded: %dx%d", img.Bounds().Dx(), img.Bounds().Dy())

	frame, err := NewFrame(img)
	if err != nil {
		return err
	}
	defer frame.Close()

	templates, err := LoadTemplates(config.Templates, config.Match, image.Point{})
	if err != nil {
		return err
	}
	defer templates.Close()

	LogInfo("=== Running Detection ===")
	result := AnalyzeImage(config, templates, frame)
	LogInfo("Best match: %s (%s) at %v, score %.3f, trusted %v",
		result.Match.Template, result.Match.Pose, result.Match.Location, result.Match.Score, result.Found)
	LogInfo("Scene: %s, window %v, foreground %d, decision %s",
		result.Analysis.Mode, result.Analysis.Window, result.Analysis.Foreground, result.Analysis.Decision)

	LogInfo("=== Creating Visualization ===")
	annotated := frame.Color.Clone()
	defer annotated.Close()

	var match *MatchResult
	if result.Found {
		match = &result.Match
	}
	annotateFrame(&annotated, match, result.Analysis)

	if err := saveMat(outputPath, annotated); err != nil {
		return err
	}
	LogInfo("Saved %s", outputPath)

	if !result.Analysis.Window.Empty() {
		maskPath := maskPathFor(outputPath)
		if err := saveWindowMask(maskPath, frame, result.Analysis, NewAnalyzer(config)); err != nil {
			return err
		}
		LogInfo("Saved %s", maskPath)
	}

	LogInfo("=== Training Mode Completed ===")
	return nil
}

// loadImage decodes any registered image format from file
func loadImage(filename string) (image.Image, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filename, err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filename, err)
	}
	return img, nil
}

// maskPathFor derives the mask file name: result.png -> result_mask.png
func maskPathFor(outputPath string) string {
	ext := filepath.Ext(outputPath)
	return strings.TrimSuffix(outputPath, ext) + "_mask" + ext
}

// saveWindowMask writes the binarized look-ahead window
func saveWindowMask(filename string, frame *Frame, analysis Analysis, analyzer *Analyzer) error {
	region := frame.Gray.Region(analysis.Window)
	defer region.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	analyzer.Binarizer(analysis.Mode).Binarize(region, &mask)
	return saveMat(filename, mask)
}

// saveMat saves a Mat, creating the directory if needed
func saveMat(filename string, mat gocv.Mat) error {
	dir := filepath.Dir(filename)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	if ok := gocv.IMWrite(filename, mat); !ok {
		return fmt.Errorf("failed to write %s", filename)
	}
	return nil
}
