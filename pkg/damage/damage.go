// Package damage marks pixels of a buffer as dead, to produce inputs for
// inpainting.
package damage

import (
	"fmt"
	"math/rand"

	"patchinpaint/internal/models"
)

// Remove kills the rectangle whose top-left corner is (row, col). A negative
// height or width extends the rectangle to the bottom or right edge. The
// rectangle is clipped to the image. It returns the number of pixels killed.
func Remove(buf *models.PixelBuffer, row, col, height, width int) (int, error) {
	if row < 0 || col < 0 || row >= buf.Height || col >= buf.Width {
		return 0, fmt.Errorf("rectangle origin (%d, %d) outside %dx%d image", row, col, buf.Height, buf.Width)
	}
	if height < 0 {
		height = buf.Height - row
	}
	if width < 0 {
		width = buf.Width - col
	}

	rowEnd := min(row+height, buf.Height)
	colEnd := min(col+width, buf.Width)
	n := 0
	for i := row; i < rowEnd; i++ {
		for j := col; j < colEnd; j++ {
			buf.Set(i, j, models.DeadPixel)
			n++
		}
	}
	return n, nil
}

// Noise kills int(rate * width * height) pixels drawn uniformly with
// replacement, so the number of distinct dead pixels may be lower. It returns
// the number of distinct pixels that became dead.
func Noise(buf *models.PixelBuffer, rate float64, rng *rand.Rand) (int, error) {
	if rate < 0 || rate > 1 {
		return 0, fmt.Errorf("noise rate must be within [0, 1], got %g", rate)
	}
	total := buf.Width * buf.Height
	draws := int(rate * float64(total))

	n := 0
	for k := 0; k < draws; k++ {
		idx := rng.Intn(total)
		i, j := idx/buf.Width, idx%buf.Width
		if buf.IsDeadAt(i, j) {
			continue
		}
		buf.Set(i, j, models.DeadPixel)
		n++
	}
	return n, nil
}

// Apply kills every pixel whose row-major index is true in mask. It returns
// the number of pixels that became dead.
func Apply(buf *models.PixelBuffer, mask []bool) (int, error) {
	if len(mask) != buf.Width*buf.Height {
		return 0, fmt.Errorf("mask has %d entries for a %dx%d image", len(mask), buf.Height, buf.Width)
	}
	n := 0
	for k, dead := range mask {
		if !dead {
			continue
		}
		i, j := k/buf.Width, k%buf.Width
		if buf.IsDeadAt(i, j) {
			continue
		}
		buf.Set(i, j, models.DeadPixel)
		n++
	}
	return n, nil
}
