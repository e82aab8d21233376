package main

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var referenceMatch = MatchConfig{MinConfidence: 0.8, ReferenceWidth: 1920, ReferenceHeight: 1080}

func TestScaledSize(t *testing.T) {
	size := image.Pt(40, 38)

	assert.Equal(t, size, scaledSize(size, referenceMatch, image.Pt(1920, 1080)))
	assert.Equal(t, image.Pt(20, 19), scaledSize(size, referenceMatch, image.Pt(960, 540)))
	assert.Equal(t, image.Pt(53, 50), scaledSize(size, referenceMatch, image.Pt(2560, 1440)))
	assert.Equal(t, image.Pt(1, 1), scaledSize(image.Pt(2, 2), referenceMatch, image.Pt(100, 100)))

	// No reference or no screen: unchanged
	assert.Equal(t, size, scaledSize(size, MatchConfig{}, image.Pt(960, 540)))
	assert.Equal(t, size, scaledSize(size, referenceMatch, image.Point{}))
}

func TestLoadDefaultTemplates(t *testing.T) {
	set, err := LoadTemplates(NewConfig().Templates, referenceMatch, image.Pt(1920, 1080))
	require.NoError(t, err)
	defer set.Close()

	require.Len(t, set, 4)
	assert.Equal(t, "dino_day", set[0].Name)
	assert.Equal(t, PoseRunning, set[0].Pose)
	assert.Equal(t, image.Pt(40, 38), set[0].Size)
	assert.Equal(t, "dino_duck_night", set[3].Name)
	assert.Equal(t, PoseDucking, set[3].Pose)
	assert.Equal(t, image.Pt(52, 22), set[3].Size)

	for _, tpl := range set {
		assert.Equal(t, tpl.Size.X, tpl.Mat.Cols(), tpl.Name)
		assert.Equal(t, tpl.Size.Y, tpl.Mat.Rows(), tpl.Name)
	}
}

func TestLoadTemplatesScales(t *testing.T) {
	cfgs := []TemplateConfig{{Name: "dino_day", Pose: PoseRunning}}
	set, err := LoadTemplates(cfgs, referenceMatch, image.Pt(960, 540))
	require.NoError(t, err)
	defer set.Close()

	assert.Equal(t, image.Pt(20, 19), set[0].Size)
	assert.Equal(t, 20, set[0].Mat.Cols())
	assert.Equal(t, 19, set[0].Mat.Rows())
}

func TestLoadTemplateFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sprite.png")
	file, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(file, spriteImage(dayInk, daySky)))
	require.NoError(t, file.Close())

	cfgs := []TemplateConfig{{Name: "custom", Pose: PoseDucking, Path: path}}
	set, err := LoadTemplates(cfgs, MatchConfig{}, image.Point{})
	require.NoError(t, err)
	defer set.Close()

	assert.Equal(t, "custom", set[0].Name)
	assert.Equal(t, PoseDucking, set[0].Pose)
	assert.Equal(t, image.Pt(spriteDim, spriteDim), set[0].Size)
}

func TestLoadTemplatesErrors(t *testing.T) {
	_, err := LoadTemplates(nil, referenceMatch, image.Point{})
	assert.ErrorIs(t, err, ErrNoTemplates)

	_, err = LoadTemplates([]TemplateConfig{{Name: "no_such_asset"}}, referenceMatch, image.Point{})
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0644))
	_, err = LoadTemplates([]TemplateConfig{{Name: "bad", Path: bad}}, referenceMatch, image.Point{})
	assert.Error(t, err)
}
