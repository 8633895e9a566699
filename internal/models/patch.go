package models

// Patch is a square (2h+1)x(2h+1) window of pixels, stored like a
// PixelBuffer: row-major and channel-interleaved.
type Patch struct {
	// HalfSize is h; the patch side is 2h+1
	HalfSize int

	// Pix holds Size()*Size()*Channels values
	Pix []float64
}

// NewPatch allocates a zeroed patch of half-size h.
func NewPatch(h int) Patch {
	s := 2*h + 1
	return Patch{HalfSize: h, Pix: make([]float64, s*s*Channels)}
}

// Size returns the side length of the patch.
func (p Patch) Size() int {
	return 2*p.HalfSize + 1
}

// Positions returns the number of pixel positions in the patch.
func (p Patch) Positions() int {
	s := p.Size()
	return s * s
}

// Value returns channel c at patch row r, column col.
func (p Patch) Value(r, col, c int) float64 {
	return p.Pix[(r*p.Size()+col)*Channels+c]
}

// At returns the pixel at patch row r, column col.
func (p Patch) At(r, col int) Pixel {
	var px Pixel
	copy(px[:], p.Pix[(r*p.Size()+col)*Channels:])
	return px
}

// Channel returns the values of channel c for every position, row-major.
func (p Patch) Channel(c int) []float64 {
	out := make([]float64, p.Positions())
	for k := range out {
		out[k] = p.Pix[k*Channels+c]
	}
	return out
}

// CountDead returns how many positions hold a non-live value in channel c.
// Out-of-bounds cells count as well.
func (p Patch) CountDead(c int) int {
	n := 0
	for k := 0; k < p.Positions(); k++ {
		if !IsLive(p.Pix[k*Channels+c]) {
			n++
		}
	}
	return n
}
