package main

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// testMatch is a sprite at (10,40) of 20x20; with testConfig its window is (30,40)-(50,60)
var testMatch = MatchResult{Template: "sprite", Location: image.Pt(10, 40), Size: image.Pt(20, 20), Score: 0.99}

var testWindow = image.Rect(30, 40, 50, 60)

func TestLookAheadWindow(t *testing.T) {
	cfg := testConfig()
	cfg.LookAhead = LookAheadConfig{OffsetX: 5, OffsetY: 2, Width: 30, Height: 10}
	a := NewAnalyzer(cfg)
	frame := image.Rect(0, 0, 200, 100)

	// Feet line at 35: bottom at 35+2, top 10 rows above
	match := MatchResult{Location: image.Pt(10, 20), Size: image.Pt(20, 15)}
	assert.Equal(t, image.Rect(35, 27, 65, 37), a.LookAheadWindow(match, frame))

	// Clipped at the right edge
	match.Location = image.Pt(160, 20)
	assert.Equal(t, image.Rect(185, 27, 200, 37), a.LookAheadWindow(match, frame))

	// Entirely outside
	match.Location = image.Pt(180, 20)
	assert.True(t, a.LookAheadWindow(match, frame).Empty())

	// Clipped at the bottom edge
	match.Location = image.Pt(10, 85)
	assert.Equal(t, image.Rect(35, 92, 65, 100), a.LookAheadWindow(match, frame))
}

func TestLookAheadWindowFollowsFeetLine(t *testing.T) {
	a := NewAnalyzer(testConfig())
	frame := image.Rect(0, 0, 200, 100)

	// Same feet line (y=60) and tail (x=10), ducking is shorter and wider
	running := MatchResult{Pose: PoseRunning, Location: image.Pt(10, 40), Size: image.Pt(20, 20)}
	ducking := MatchResult{Pose: PoseDucking, Location: image.Pt(10, 50), Size: image.Pt(26, 10)}

	runWin := a.LookAheadWindow(running, frame)
	duckWin := a.LookAheadWindow(ducking, frame)
	assert.Equal(t, image.Rect(30, 40, 50, 60), runWin)
	assert.Equal(t, image.Rect(36, 40, 56, 60), duckWin)
	assert.Equal(t, runWin.Min.Y, duckWin.Min.Y)
	assert.Equal(t, runWin.Max.Y, duckWin.Max.Y)

	assert.Equal(t, a.SkyBand(running, frame), a.SkyBand(ducking, frame))
}

func TestDecideKeepsDuckAfterPoseChange(t *testing.T) {
	a := NewAnalyzer(testConfig())
	img := grayImage(200, 100, daySky)
	// Bird at head height: 6x3 = 18 pixels
	fillRect(img, image.Rect(40, 44, 46, 47), dayInk)
	// Ground line right below the feet
	fillRect(img, image.Rect(0, 60, 200, 61), dayInk)
	frame := newTestFrame(t, img)

	running := MatchResult{Pose: PoseRunning, Location: image.Pt(10, 40), Size: image.Pt(20, 20), Score: 1}
	ducking := MatchResult{Pose: PoseDucking, Location: image.Pt(10, 50), Size: image.Pt(26, 10), Score: 1}

	standing := a.Decide(frame, &running, a.SelectMode(frame, running))
	crouched := a.Decide(frame, &ducking, a.SelectMode(frame, ducking))

	assert.Equal(t, SceneDay, standing.Mode)
	assert.Equal(t, SceneDay, crouched.Mode)
	assert.Equal(t, 18, standing.Foreground)
	assert.Equal(t, 18, crouched.Foreground)
	assert.Equal(t, DecisionDuck, standing.Decision)
	assert.Equal(t, DecisionDuck, crouched.Decision)
	assert.Equal(t, standing.Sky, crouched.Sky)
}

func TestDecideWithoutMatchIsNone(t *testing.T) {
	a := NewAnalyzer(testConfig())
	frame := newTestFrame(t, grayImage(200, 100, daySky))

	result := a.Decide(frame, nil, SceneNight)
	assert.Equal(t, DecisionNone, result.Decision)
	assert.Equal(t, SceneNight, result.Mode)
	assert.True(t, result.Window.Empty())
	assert.Zero(t, result.Foreground)
}

func TestDecideEmptyWindowIsNone(t *testing.T) {
	a := NewAnalyzer(testConfig())
	img := grayImage(200, 100, daySky)
	fillRect(img, img.Rect, dayInk)
	frame := newTestFrame(t, img)

	match := MatchResult{Location: image.Pt(180, 40), Size: image.Pt(20, 20), Score: 1}
	result := a.Decide(frame, &match, SceneDay)
	assert.Equal(t, DecisionNone, result.Decision)
	assert.True(t, result.Window.Empty())
}

func TestDecideDaytimeFewPixelsIsNone(t *testing.T) {
	a := NewAnalyzer(testConfig())
	img := grayImage(200, 100, daySky)
	paintPixels(img, testWindow, 5, dayInk)
	frame := newTestFrame(t, img)

	result := a.Decide(frame, &testMatch, SceneDay)
	assert.Equal(t, testWindow, result.Window)
	assert.Equal(t, 5, result.Foreground)
	assert.Equal(t, DecisionNone, result.Decision)
}

func TestDecideDaytimeManyPixelsIsJump(t *testing.T) {
	a := NewAnalyzer(testConfig())
	img := grayImage(200, 100, daySky)
	paintPixels(img, testWindow, 50, dayInk)
	frame := newTestFrame(t, img)

	result := a.Decide(frame, &testMatch, SceneDay)
	assert.Equal(t, 50, result.Foreground)
	assert.Equal(t, DecisionJump, result.Decision)
}

func TestDecideNighttimeOtsuIsDuck(t *testing.T) {
	cfg := testConfig()
	cfg.LookAhead.Width, cfg.LookAhead.Height = 10, 10
	a := NewAnalyzer(cfg)

	img := grayImage(200, 100, nightSky)
	window := image.Rect(30, 50, 40, 60)
	paintPixels(img, window, 18, nightInk)
	frame := newTestFrame(t, img)

	result := a.Decide(frame, &testMatch, SceneNight)
	assert.Equal(t, window, result.Window)
	assert.Equal(t, 18, result.Foreground)
	assert.Equal(t, DecisionDuck, result.Decision)
}

func TestDecideIgnoresPixelsOutsideWindow(t *testing.T) {
	a := NewAnalyzer(testConfig())
	img := grayImage(200, 100, daySky)
	fillRect(img, image.Rect(60, 0, 200, 100), dayInk)
	fillRect(img, image.Rect(0, 0, 200, 40), dayInk)
	frame := newTestFrame(t, img)

	result := a.Decide(frame, &testMatch, SceneDay)
	assert.Zero(t, result.Foreground)
	assert.Equal(t, DecisionNone, result.Decision)
}

func TestBinarizationIsDeterministic(t *testing.T) {
	a := NewAnalyzer(testConfig())
	img := grayImage(200, 100, nightSky)
	paintPixels(img, testWindow, 77, nightInk)
	paintPixels(img, testWindow.Add(image.Pt(0, 10)), 13, 120)
	frame := newTestFrame(t, img)

	for _, mode := range []SceneMode{SceneDay, SceneNight} {
		masks := make([][]byte, 2)
		for i := range masks {
			region := frame.Gray.Region(testWindow)
			mask := gocv.NewMat()
			a.Binarizer(mode).Binarize(region, &mask)
			masks[i] = mask.ToBytes()
			mask.Close()
			region.Close()
		}
		assert.Equal(t, masks[0], masks[1], "mode %s", mode)
		assert.Equal(t,
			a.CountForeground(frame.Gray, testWindow, mode),
			a.CountForeground(frame.Gray, testWindow, mode))
	}
}

func TestFixedThresholdPolarity(t *testing.T) {
	img := grayImage(10, 10, 100)
	paintPixels(img, img.Rect, 30, 200)
	frame := newTestFrame(t, img)
	window := img.Rect

	count := func(b Binarizer) int {
		region := frame.Gray.Region(window)
		defer region.Close()
		mask := gocv.NewMat()
		defer mask.Close()
		b.Binarize(region, &mask)
		return gocv.CountNonZero(mask)
	}

	assert.Equal(t, 70, count(FixedThreshold{Level: 150, Polarity: PolarityDark}))
	assert.Equal(t, 30, count(FixedThreshold{Level: 150, Polarity: PolarityLight}))
	// Dark includes the level itself, light excludes it
	assert.Equal(t, 100, count(FixedThreshold{Level: 200, Polarity: PolarityDark}))
	assert.Equal(t, 0, count(FixedThreshold{Level: 200, Polarity: PolarityLight}))
	assert.Equal(t, 30, count(OtsuThreshold{Polarity: PolarityLight}))
	assert.Equal(t, 70, count(OtsuThreshold{Polarity: PolarityDark}))
}

func TestClassifyBoundaries(t *testing.T) {
	bands := DecisionConfig{Low: 10, High: 30}
	cases := []struct {
		count int
		want  Decision
	}{
		{0, DecisionNone},
		{9, DecisionNone},
		{10, DecisionDuck},
		{18, DecisionDuck},
		{30, DecisionDuck},
		{31, DecisionJump},
		{400, DecisionJump},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Classify(c.count, bands), "count %d", c.count)
	}

	// Monotonic: the decision only changes at the band edges
	prev := Classify(0, bands)
	changes := 0
	for n := 1; n <= 100; n++ {
		d := Classify(n, bands)
		if d != prev {
			changes++
			assert.Contains(t, []int{bands.Low, bands.High + 1}, n)
		}
		prev = d
	}
	assert.Equal(t, 2, changes)
}

func TestSelectModeAuto(t *testing.T) {
	a := NewAnalyzer(testConfig())
	require.Equal(t, SceneAuto, a.SceneSetting())

	day := newTestFrame(t, grayImage(200, 100, daySky))
	assert.Equal(t, SceneDay, a.SelectMode(day, testMatch))

	night := newTestFrame(t, grayImage(200, 100, nightSky))
	assert.Equal(t, SceneNight, a.SelectMode(night, testMatch))

	// Sprite at the top edge leaves no sky band
	top := testMatch
	top.Location = image.Pt(10, 0)
	assert.Equal(t, SceneNight, a.SelectMode(day, top))
}

func TestSelectModeUsesSkyAboveSprite(t *testing.T) {
	a := NewAnalyzer(testConfig())

	// Bright band above the sprite, dark everywhere else
	img := grayImage(200, 100, nightSky)
	fillRect(img, image.Rect(0, 20, 200, 40), daySky)
	frame := newTestFrame(t, img)
	assert.Equal(t, SceneDay, a.SelectMode(frame, testMatch))

	// Exactly half bright is not more than the 0.5 ratio
	img = grayImage(200, 100, nightSky)
	fillRect(img, image.Rect(0, 20, 100, 40), daySky)
	frame = newTestFrame(t, img)
	assert.Equal(t, SceneNight, a.SelectMode(frame, testMatch))
}

func TestSelectModeFixedSettings(t *testing.T) {
	a := NewAnalyzer(testConfig())
	night := newTestFrame(t, grayImage(200, 100, nightSky))

	a.SetSceneSetting(SceneFixedDay)
	assert.Equal(t, SceneDay, a.SelectMode(night, testMatch))

	a.SetSceneSetting(SceneFixedNight)
	day := newTestFrame(t, grayImage(200, 100, daySky))
	assert.Equal(t, SceneNight, a.SelectMode(day, testMatch))

	a.SetSceneSetting(SceneAuto)
	assert.Equal(t, SceneDay, a.SelectMode(day, testMatch))
}

func TestSkyBand(t *testing.T) {
	frame := image.Rect(0, 0, 200, 100)
	assert.Equal(t, image.Rect(0, 20, 200, 40), skyBand(testMatch, 20, frame))

	m := testMatch
	m.Location.Y = 5
	assert.Equal(t, image.Rect(0, 0, 200, 5), skyBand(m, 20, frame))

	// A shorter template with the same feet line gives the same band
	m = testMatch
	m.Location.Y, m.Size.Y = 50, 10
	assert.Equal(t, image.Rect(0, 20, 200, 40), skyBand(m, 20, frame))
}
