// Package visualtest compares rendered pages against reference images.
package visualtest

import (
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/pkg/errors"
)

// Result describes how two images differ.
type Result struct {
	Match           bool
	DifferentPixels int
	TotalPixels     int
	// MaxDifference is the largest channel difference found, 0-255.
	MaxDifference int
	// Diff highlights differing pixels in red over a grayscale copy of the
	// actual image. Only set when Options.Diff is true.
	Diff *image.RGBA
}

// Options configure a comparison.
type Options struct {
	// Tolerance is the largest per-channel difference still counted as
	// equal, 0-255.
	Tolerance int
	// FuzzyRadius lets a pixel match any expected pixel within this many
	// pixels. It absorbs small text shifts.
	FuzzyRadius int
	// MaxDifferentPercent passes the comparison when at most this share of
	// pixels differ.
	MaxDifferentPercent float64
	Diff                bool
}

func DefaultOptions() Options {
	return Options{Tolerance: 2}
}

// Compare compares actual against expected pixel by pixel.
func Compare(actual, expected image.Image, opts Options) (*Result, error) {
	bounds := actual.Bounds()
	if bounds != expected.Bounds() {
		return &Result{}, errors.Errorf("image bounds differ: actual=%v, expected=%v", bounds, expected.Bounds())
	}
	res := &Result{Match: true, TotalPixels: bounds.Dx() * bounds.Dy()}
	if opts.Diff {
		res.Diff = image.NewRGBA(bounds)
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			a := rgba8(actual.At(x, y))
			d := channelDiff(a, rgba8(expected.At(x, y)))
			if d > res.MaxDifference {
				res.MaxDifference = d
			}
			same := d <= opts.Tolerance ||
				opts.FuzzyRadius > 0 && fuzzyMatch(a, expected, x, y, opts.FuzzyRadius, opts.Tolerance)
			if !same {
				res.Match = false
				res.DifferentPixels++
			}
			if res.Diff != nil {
				if same {
					res.Diff.Set(x, y, color.RGBA{a[0], a[0], a[0], 255})
				} else {
					res.Diff.Set(x, y, color.RGBA{255, 0, 0, 255})
				}
			}
		}
	}

	if !res.Match && opts.MaxDifferentPercent > 0 && res.TotalPixels > 0 {
		pct := float64(res.DifferentPixels) / float64(res.TotalPixels) * 100
		res.Match = pct <= opts.MaxDifferentPercent
	}
	return res, nil
}

// CompareFiles loads two PNG files and compares them.
func CompareFiles(actualPath, expectedPath string, opts Options) (*Result, error) {
	actual, err := LoadPNG(actualPath)
	if err != nil {
		return nil, err
	}
	expected, err := LoadPNG(expectedPath)
	if err != nil {
		return nil, err
	}
	return Compare(actual, expected, opts)
}

// fuzzyMatch reports whether a matches any expected pixel within radius of
// (x, y).
func fuzzyMatch(a [4]uint8, expected image.Image, x, y, radius, tolerance int) bool {
	bounds := expected.Bounds()
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			p := image.Pt(x+dx, y+dy)
			if !p.In(bounds) {
				continue
			}
			if channelDiff(a, rgba8(expected.At(p.X, p.Y))) <= tolerance {
				return true
			}
		}
	}
	return false
}

func rgba8(c color.Color) [4]uint8 {
	r, g, b, a := c.RGBA()
	return [4]uint8{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), uint8(a >> 8)}
}

func channelDiff(a, b [4]uint8) int {
	max := 0
	for i := range a {
		d := int(a[i]) - int(b[i])
		if d < 0 {
			d = -d
		}
		if d > max {
			max = d
		}
	}
	return max
}

func LoadPNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open image")
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return img, nil
}

func SavePNG(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create image")
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return errors.Wrapf(err, "encode %s", path)
	}
	return errors.Wrap(f.Close(), "close image")
}
