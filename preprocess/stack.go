// Package preprocess loads image sequences into grayscale float32 frames.
package preprocess

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"
	"golang.org/x/image/tiff"

	"github.com/swdee/go-maskflow"
)

// SequenceName returns the name of the sequence read from path, its base
// name without extension
func SequenceName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ReadStack reads every page of the multi page image at path, keeping the
// source bit depth
func ReadStack(path string) (maskflow.Sequence, error) {

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("error reading stack: %w", err)
	}

	mats := gocv.IMReadMulti(path, gocv.IMReadAnyDepth)

	defer func() {
		for _, m := range mats {
			m.Close()
		}
	}()

	if len(mats) == 0 {
		return nil, fmt.Errorf("no pages decoded from %s", path)
	}

	frames := make([]*maskflow.Tensor, 0, len(mats))

	for i, m := range mats {

		t, err := matTensor(m)

		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}

		frames = append(frames, t)
	}

	if err := sameSize(frames); err != nil {
		return nil, err
	}

	return maskflow.NewSequence(SequenceName(path), frames...), nil
}

// matTensor converts a single or multi channel Mat into a grayscale [h, w]
// float32 tensor
func matTensor(m gocv.Mat) (*maskflow.Tensor, error) {

	if m.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	src := m

	if m.Channels() > 1 {
		gray := gocv.NewMat()
		defer gray.Close()

		code := gocv.ColorBGRToGray
		if m.Channels() == 4 {
			code = gocv.ColorBGRAToGray
		}

		gocv.CvtColor(m, &gray, code)
		src = gray
	}

	f := gocv.NewMat()
	defer f.Close()

	src.ConvertTo(&f, gocv.MatTypeCV32F)

	data, err := f.DataPtrFloat32()

	if err != nil {
		return nil, fmt.Errorf("error reading pixel data: %w", err)
	}

	return maskflow.NewFloat32Tensor([]int{f.Rows(), f.Cols()}, append([]float32(nil), data...))
}

// ReadFrames reads one frame per path into a sequence called name.  TIFF
// files keep their 16-bit depth, other formats are converted to 8-bit
// grayscale.
func ReadFrames(name string, paths ...string) (maskflow.Sequence, error) {

	if len(paths) == 0 {
		return nil, fmt.Errorf("no frames given")
	}

	frames := make([]*maskflow.Tensor, 0, len(paths))

	for _, p := range paths {

		img, err := decode(p)

		if err != nil {
			return nil, fmt.Errorf("error reading frame %s: %w", p, err)
		}

		frames = append(frames, imageTensor(img))
	}

	if err := sameSize(frames); err != nil {
		return nil, err
	}

	return maskflow.NewSequence(name, frames...), nil
}

func decode(path string) (image.Image, error) {

	switch strings.ToLower(filepath.Ext(path)) {
	case ".tif", ".tiff":
		f, err := os.Open(path)

		if err != nil {
			return nil, err
		}

		defer f.Close()

		return tiff.Decode(f)
	}

	img, err := imaging.Open(path)

	if err != nil {
		return nil, err
	}

	return imaging.Grayscale(img), nil
}

// imageTensor converts img into a [h, w] float32 tensor of gray levels
func imageTensor(img image.Image) *maskflow.Tensor {

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	data := make([]float32, 0, w*h)

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			data = append(data, grayLevel(img, x, y))
		}
	}

	t, _ := maskflow.NewFloat32Tensor([]int{h, w}, data)

	return t
}

func grayLevel(img image.Image, x, y int) float32 {

	switch im := img.(type) {
	case *image.Gray16:
		return float32(im.Gray16At(x, y).Y)

	case *image.Gray:
		return float32(im.GrayAt(x, y).Y)

	case *image.NRGBA:
		// imaging.Grayscale leaves equal channels
		return float32(im.NRGBAAt(x, y).R)
	}

	return float32(color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y)
}

func sameSize(frames []*maskflow.Tensor) error {

	for i, f := range frames[1:] {
		if f.Dim(0) != frames[0].Dim(0) || f.Dim(1) != frames[0].Dim(1) {
			return fmt.Errorf("%w: frame %d is %dx%d, frame 0 is %dx%d", maskflow.ErrInvalidInput,
				i+1, f.Dim(1), f.Dim(0), frames[0].Dim(1), frames[0].Dim(0))
		}
	}

	return nil
}
