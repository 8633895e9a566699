// Package patch extracts square neighbourhoods from a pixel buffer.
package patch

import (
	"image"
	"iter"

	"patchinpaint/internal/models"
)

// Extractor reads patches out of a pixel buffer. It holds a reference to the
// buffer, not a copy, so every call observes the buffer's current contents.
type Extractor struct {
	buf *models.PixelBuffer
}

// NewExtractor creates an extractor over buf.
func NewExtractor(buf *models.PixelBuffer) *Extractor {
	return &Extractor{buf: buf}
}

// InBounds reports whether the (2h+1)x(2h+1) window centred at (i, j) lies
// entirely inside the image.
func (e *Extractor) InBounds(i, j, h int) bool {
	return i-h >= 0 && j-h >= 0 && i+h+1 <= e.buf.Height && j+h+1 <= e.buf.Width
}

// Extract returns the window of half-size h centred at (i, j).
//
// The result always has shape (2h+1)x(2h+1)x3. Cells that fall outside the
// image hold models.OutOfBounds in every channel; in-bounds cells are exact
// copies of the source pixels.
func (e *Extractor) Extract(i, j, h int) models.Patch {
	p := models.NewPatch(h)
	size := p.Size()
	rowLen := size * models.Channels

	if e.InBounds(i, j, h) {
		// Whole rows can be copied straight out of the buffer
		for r := 0; r < size; r++ {
			src := ((i-h+r)*e.buf.Width + (j - h)) * models.Channels
			copy(p.Pix[r*rowLen:(r+1)*rowLen], e.buf.Pix[src:src+rowLen])
		}
		return p
	}

	for r := 0; r < size; r++ {
		for col := 0; col < size; col++ {
			dst := (r*size + col) * models.Channels
			y, x := i-h+r, j-h+col
			if !e.buf.Contains(y, x) {
				for c := 0; c < models.Channels; c++ {
					p.Pix[dst+c] = models.OutOfBounds
				}
				continue
			}
			src := (y*e.buf.Width + x) * models.Channels
			copy(p.Pix[dst:dst+models.Channels], e.buf.Pix[src:src+models.Channels])
		}
	}
	return p
}

// Missing yields the in-bounds image coordinates inside the window centred at
// (i, j) whose pixel is dead at the moment it is visited, in row-major order.
// Points are image.Point{X: column, Y: row}.
//
// The sequence reads the buffer lazily, so pixels written by the consumer
// while iterating are seen as live once the iteration reaches them. Each call
// to the returned function starts a fresh scan.
func (e *Extractor) Missing(i, j, h int) iter.Seq[image.Point] {
	return func(yield func(image.Point) bool) {
		r0, r1 := max(i-h, 0), min(i+h, e.buf.Height-1)
		c0, c1 := max(j-h, 0), min(j+h, e.buf.Width-1)
		for y := r0; y <= r1; y++ {
			for x := c0; x <= c1; x++ {
				if !e.buf.IsDeadAt(y, x) {
					continue
				}
				if !yield(image.Point{X: x, Y: y}) {
					return
				}
			}
		}
	}
}
