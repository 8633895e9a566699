// Package imageio converts between image files and pixel buffers.
//
// Buffers hold hue, saturation and value, each scaled to [0, 1] and then
// shifted by -0.5 so valid data sits in [-0.5, 0.5], far from the dead
// sentinel.
package imageio

import (
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/nfnt/resize"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"patchinpaint/internal/models"
)

// Shift is subtracted from every normalised channel value.
const Shift = 0.5

// FromImage converts img to a pixel buffer. Alpha is ignored.
func FromImage(img image.Image) *models.PixelBuffer {
	bounds := img.Bounds()
	buf := models.NewPixelBuffer(bounds.Dx(), bounds.Dy())

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBA64Model.Convert(img.At(x, y)).(color.NRGBA64)
			rgb := colorful.Color{
				R: float64(c.R) / 65535.0,
				G: float64(c.G) / 65535.0,
				B: float64(c.B) / 65535.0,
			}
			h, s, v := rgb.Hsv()
			buf.Set(y-bounds.Min.Y, x-bounds.Min.X, models.Pixel{h/360.0 - Shift, s - Shift, v - Shift})
		}
	}
	return buf
}

// ToImage converts a pixel buffer back to RGB. Dead pixels are drawn black and
// values outside the valid range are clamped.
func ToImage(buf *models.PixelBuffer) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, buf.Width, buf.Height))
	for i := 0; i < buf.Height; i++ {
		for j := 0; j < buf.Width; j++ {
			img.SetNRGBA(j, i, PixelColor(buf.At(i, j)))
		}
	}
	return img
}

// PixelColor converts a single buffer pixel to RGB.
func PixelColor(p models.Pixel) color.NRGBA {
	if models.IsDead(p) {
		return color.NRGBA{A: 255}
	}
	h := clamp01(p[0]+Shift) * 360.0
	if h >= 360 {
		h = 0
	}
	c := colorful.Hsv(h, clamp01(p[1]+Shift), clamp01(p[2]+Shift)).Clamped()
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

// Load decodes an image file into a pixel buffer. If maxDimension is positive
// and the image is larger, it is downscaled first, preserving aspect ratio.
func Load(path string, maxDimension int) (*models.PixelBuffer, error) {
	img, err := loadImage(path)
	if err != nil {
		return nil, err
	}
	if maxDimension > 0 {
		b := img.Bounds()
		if b.Dx() > maxDimension || b.Dy() > maxDimension {
			img = resize.Thumbnail(uint(maxDimension), uint(maxDimension), img, resize.Lanczos3)
		}
	}
	return FromImage(img), nil
}

// loadImage loads an image from a file
func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, nil
}

// LoadMask decodes a mask image and returns a row-major width x height mask
// that is true where the mask is bright (luma >= 50%). Masks of another size
// are resampled with nearest-neighbour interpolation.
func LoadMask(path string, width, height int) ([]bool, error) {
	img, err := loadImage(path)
	if err != nil {
		return nil, err
	}
	if b := img.Bounds(); b.Dx() != width || b.Dy() != height {
		img = resize.Resize(uint(width), uint(height), img, resize.NearestNeighbor)
	}

	bounds := img.Bounds()
	mask := make([]bool, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			g := color.Gray16Model.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray16)
			mask[y*width+x] = g.Y >= 0x8000
		}
	}
	return mask, nil
}

// Save encodes a pixel buffer, choosing the format from the file extension
// (.png, .jpg, .jpeg, .bmp, .tif, .tiff).
func Save(buf *models.PixelBuffer, path string) error {
	return SaveImage(ToImage(buf), path)
}

// SaveImage encodes img, choosing the format from the file extension.
func SaveImage(img image.Image, path string) error {
	encode, err := encoderFor(path)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	err = encode(file, img)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func encoderFor(path string) (func(io.Writer, image.Image) error, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".png":
		return png.Encode, nil
	case ".jpg", ".jpeg":
		return func(w io.Writer, img image.Image) error {
			return jpeg.Encode(w, img, &jpeg.Options{Quality: 95})
		}, nil
	case ".bmp":
		return bmp.Encode, nil
	case ".tif", ".tiff":
		return func(w io.Writer, img image.Image) error {
			return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
		}, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", ext)
	}
}
