package preprocess

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"

	"github.com/swdee/go-maskflow"
)

func writeTIFF(t *testing.T, path string, w, h int, level uint16) {
	t.Helper()

	img := image.NewGray16(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray16(x, y, color.Gray16{Y: level + uint16(x)})
		}
	}

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, tiff.Encode(f, img, nil))
}

func writePNG(t *testing.T, path string, w, h int, c color.NRGBA) {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}

	require.NoError(t, imaging.Save(img, path))
}

func TestReadFramesTIFFKeepsDepth(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.tif")
	b := filepath.Join(dir, "b.tiff")

	writeTIFF(t, a, 3, 2, 1000)
	writeTIFF(t, b, 3, 2, 40000)

	seq, err := ReadFrames("cells", a, b)
	require.NoError(t, err)

	assert.Equal(t, "cells", seq.Name())
	assert.Equal(t, 2, seq.Len())

	f, err := seq.Frame(1)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, f.Shape())
	assert.Equal(t, []float32{40000, 40001, 40002, 40000, 40001, 40002}, f.Float32s())
}

func TestReadFramesPNGGrayscale(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "frame.png")

	writePNG(t, p, 4, 4, color.NRGBA{R: 90, G: 90, B: 90, A: 255})

	seq, err := ReadFrames("png", p)
	require.NoError(t, err)

	f, err := seq.Frame(0)
	require.NoError(t, err)
	assert.Equal(t, float32(90), f.Float32s()[5])
}

func TestReadFramesSizeMismatch(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.tif")
	b := filepath.Join(dir, "b.tif")

	writeTIFF(t, a, 3, 2, 0)
	writeTIFF(t, b, 2, 3, 0)

	_, err := ReadFrames("mixed", a, b)
	assert.ErrorIs(t, err, maskflow.ErrInvalidInput)

	_, err = ReadFrames("none")
	assert.Error(t, err)

	_, err = ReadFrames("missing", filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
}

func TestReadStack(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "stack-01.tif")

	writeTIFF(t, p, 5, 4, 300)

	seq, err := ReadStack(p)
	require.NoError(t, err)

	assert.Equal(t, "stack-01", seq.Name())
	require.Equal(t, 1, seq.Len())

	f, err := seq.Frame(0)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 5}, f.Shape())
	assert.Equal(t, float32(304), f.Float32s()[4])

	_, err = ReadStack(filepath.Join(dir, "missing.tif"))
	assert.Error(t, err)
}

func TestSequenceName(t *testing.T) {
	assert.Equal(t, "run.v2", SequenceName("/data/run.v2.tif"))
}
