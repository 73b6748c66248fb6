package render

import (
	"image/color"
	"sync"

	"github.com/lucasb-eyer/go-colorful"
)

var (
	// classColors is the palette of the Distinct LUT
	classColors = []color.RGBA{
		{R: 255, G: 56, B: 56, A: 255},   // #FF3838
		{R: 255, G: 112, B: 31, A: 255},  // #FF701F
		{R: 255, G: 178, B: 29, A: 255},  // #FFB21D
		{R: 207, G: 210, B: 49, A: 255},  // #CFD231
		{R: 72, G: 249, B: 10, A: 255},   // #48F90A
		{R: 26, G: 147, B: 52, A: 255},   // #1A9334
		{R: 0, G: 212, B: 187, A: 255},   // #00D4BB
		{R: 0, G: 194, B: 255, A: 255},   // #00C2FF
		{R: 52, G: 69, B: 147, A: 255},   // #344593
		{R: 100, G: 115, B: 255, A: 255}, // #6473FF
		{R: 0, G: 24, B: 236, A: 255},    // #0018EC
		{R: 132, G: 56, B: 255, A: 255},  // #8438FF
		{R: 82, G: 0, B: 133, A: 255},    // #520085
		{R: 255, G: 149, B: 200, A: 255}, // #FF95C8
		{R: 255, G: 55, B: 199, A: 255},  // #FF37C7
		{R: 255, G: 157, B: 151, A: 255}, // #FF9D97
		{R: 44, G: 153, B: 168, A: 255},  // #2C99A8
		{R: 61, G: 219, B: 134, A: 255},  // #3DDB86
		{R: 203, G: 56, B: 255, A: 255},  // #CB38FF
		{R: 146, G: 204, B: 23, A: 255},  // #92CC17
	}

	Black  = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	White  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Yellow = color.RGBA{R: 255, G: 255, B: 50, A: 255}
	Pink   = color.RGBA{R: 255, G: 0, B: 255, A: 255}
)

// LUTSize is the number of entries in a colour lookup table
const LUTSize = 256

// LUT is a colour lookup table
type LUT [LUTSize]color.RGBA

// Spectrum returns a LUT sweeping the full hue circle at full saturation and
// brightness
func Spectrum() LUT {
	var lut LUT

	for i := range lut {
		c := colorful.Hsv(float64(i)*360/LUTSize, 1, 1).Clamped()
		r, g, b := c.RGB255()
		lut[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}

	return lut
}

// Distinct returns a LUT cycling through the fixed palette of visually
// distinct colours
func Distinct() LUT {
	var lut LUT

	for i := range lut {
		lut[i] = classColors[i%len(classColors)]
	}

	return lut
}

// Colorizer maps object ids onto a LUT resampled to the number of distinct
// objects.  Colours are computed on first use and cached.
type Colorizer struct {
	lut   LUT
	total int
	mu    sync.Mutex
	cache map[int]color.RGBA
}

// NewColorizer returns a Colorizer spreading total object ids over lut
func NewColorizer(lut LUT, total int) *Colorizer {
	return &Colorizer{
		lut:   lut,
		total: total,
		cache: make(map[int]color.RGBA),
	}
}

// Total returns the number of object ids the LUT is resampled to
func (c *Colorizer) Total() int {
	return c.total
}

// Color returns the colour of objectID.  Ids outside [0, total) are drawn
// White.
func (c *Colorizer) Color(objectID int) color.RGBA {

	if objectID < 0 || objectID >= c.total {
		return White
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if clr, ok := c.cache[objectID]; ok {
		return clr
	}

	clr := c.lut[objectID*LUTSize/c.total]
	c.cache[objectID] = clr

	return clr
}
