package models

import "fmt"

// Channels is the number of colour channels carried by every pixel.
const Channels = 3

// Sentinel values. Valid image data lives in [-0.5, 0.5] after the colour
// space shift, so neither sentinel can collide with a real channel value.
// OutOfBounds must stay strictly below Dead.
const (
	// Dead marks a missing pixel. A pixel is dead when every channel is <= Dead.
	Dead = -100.0

	// OutOfBounds fills patch cells that fall outside the image.
	OutOfBounds = -1000.0
)

// Pixel holds the channel values of a single pixel
type Pixel [Channels]float64

// DeadPixel is a pixel with every channel set to the dead sentinel.
var DeadPixel = Pixel{Dead, Dead, Dead}

// IsDead reports whether every channel of p is at or below the dead sentinel.
// The <= comparison tolerates noise introduced by colour space conversion.
func IsDead(p Pixel) bool {
	for c := 0; c < Channels; c++ {
		if p[c] > Dead {
			return false
		}
	}
	return true
}

// IsLive reports whether a single channel value carries real image data.
func IsLive(v float64) bool {
	return v > Dead
}

// PixelBuffer is a mutable 3-channel raster. Pixels are stored in row-major
// order, channel-interleaved: the value of channel c at row i, column j is
// Pix[(i*Width+j)*Channels+c].
//
// A PixelBuffer is owned by its caller. The inpainting engine mutates it in
// place and never keeps a copy.
type PixelBuffer struct {
	// Width is the number of columns
	Width int

	// Height is the number of rows
	Height int

	// Pix holds Width*Height*Channels values
	Pix []float64
}

// NewPixelBuffer allocates a zeroed buffer of the given dimensions.
func NewPixelBuffer(width, height int) *PixelBuffer {
	return &PixelBuffer{
		Width:  width,
		Height: height,
		Pix:    make([]float64, width*height*Channels),
	}
}

// NewUniform returns a buffer where every pixel equals p.
func NewUniform(width, height int, p Pixel) *PixelBuffer {
	b := NewPixelBuffer(width, height)
	for k := 0; k < width*height; k++ {
		copy(b.Pix[k*Channels:(k+1)*Channels], p[:])
	}
	return b
}

// Contains reports whether (i, j) is a valid row/column coordinate.
func (b *PixelBuffer) Contains(i, j int) bool {
	return i >= 0 && j >= 0 && i < b.Height && j < b.Width
}

func (b *PixelBuffer) offset(i, j int) int {
	return (i*b.Width + j) * Channels
}

// At returns the pixel at row i, column j. It panics if (i, j) is out of range.
func (b *PixelBuffer) At(i, j int) Pixel {
	if !b.Contains(i, j) {
		panic(fmt.Sprintf("models: pixel (%d, %d) outside %dx%d buffer", i, j, b.Height, b.Width))
	}
	var p Pixel
	copy(p[:], b.Pix[b.offset(i, j):])
	return p
}

// Set writes p at row i, column j. It panics if (i, j) is out of range.
func (b *PixelBuffer) Set(i, j int, p Pixel) {
	if !b.Contains(i, j) {
		panic(fmt.Sprintf("models: pixel (%d, %d) outside %dx%d buffer", i, j, b.Height, b.Width))
	}
	copy(b.Pix[b.offset(i, j):], p[:])
}

// IsDeadAt reports whether the pixel at (i, j) is dead.
func (b *PixelBuffer) IsDeadAt(i, j int) bool {
	return IsDead(b.At(i, j))
}

// CountDead returns the number of dead pixels. It is meant for progress
// reporting only.
func (b *PixelBuffer) CountDead() int {
	n := 0
	for k := 0; k < b.Width*b.Height; k++ {
		if b.deadIndex(k) {
			n++
		}
	}
	return n
}

// NextDead returns the row-major index of the first dead pixel at or after
// index from, or -1 if there is none.
func (b *PixelBuffer) NextDead(from int) int {
	if from < 0 {
		from = 0
	}
	for k := from; k < b.Width*b.Height; k++ {
		if b.deadIndex(k) {
			return k
		}
	}
	return -1
}

func (b *PixelBuffer) deadIndex(k int) bool {
	off := k * Channels
	for c := 0; c < Channels; c++ {
		if b.Pix[off+c] > Dead {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the buffer.
func (b *PixelBuffer) Clone() *PixelBuffer {
	pix := make([]float64, len(b.Pix))
	copy(pix, b.Pix)
	return &PixelBuffer{Width: b.Width, Height: b.Height, Pix: pix}
}

// DeadMask returns a row-major mask of the currently dead pixels.
func (b *PixelBuffer) DeadMask() []bool {
	mask := make([]bool, b.Width*b.Height)
	for k := range mask {
		mask[k] = b.deadIndex(k)
	}
	return mask
}
