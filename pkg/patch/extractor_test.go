package patch

import (
	"image"
	"testing"

	"github.com/google/go-cmp/cmp"

	"patchinpaint/internal/models"
)

// createTestBuffer fills a buffer with values unique to each cell
func createTestBuffer(width, height int) *models.PixelBuffer {
	buf := models.NewPixelBuffer(width, height)
	for i := 0; i < height; i++ {
		for j := 0; j < width; j++ {
			base := float64(i*width+j) / float64(width*height) * 0.9
			buf.Set(i, j, models.Pixel{base - 0.45, base - 0.4, base - 0.35})
		}
	}
	return buf
}

func TestInBounds(t *testing.T) {
	ext := NewExtractor(createTestBuffer(10, 8))

	tests := []struct {
		i, j, h int
		want    bool
	}{
		{4, 4, 3, true},
		{3, 3, 3, true},
		{2, 3, 3, false},
		{4, 6, 3, true},
		{4, 7, 3, false},
		{4, 4, 4, false},
		{5, 5, 3, false},
	}
	for _, tt := range tests {
		if got := ext.InBounds(tt.i, tt.j, tt.h); got != tt.want {
			t.Errorf("InBounds(%d, %d, %d) = %v, want %v", tt.i, tt.j, tt.h, got, tt.want)
		}
	}
}

func TestExtractInterior(t *testing.T) {
	buf := createTestBuffer(9, 9)
	ext := NewExtractor(buf)

	p := ext.Extract(4, 5, 2)
	if p.Size() != 5 {
		t.Fatalf("Expected patch size 5, got %d", p.Size())
	}
	for r := 0; r < 5; r++ {
		for c := 0; c < 5; c++ {
			if got, want := p.At(r, c), buf.At(4-2+r, 5-2+c); got != want {
				t.Errorf("Patch cell (%d, %d) = %v, want %v", r, c, got, want)
			}
		}
	}
}

func TestExtractCorner(t *testing.T) {
	buf := createTestBuffer(6, 5)
	ext := NewExtractor(buf)
	h := 2

	p := ext.Extract(0, 0, h)
	if len(p.Pix) != 5*5*models.Channels {
		t.Fatalf("Expected %d values, got %d", 5*5*models.Channels, len(p.Pix))
	}

	oob := models.Pixel{models.OutOfBounds, models.OutOfBounds, models.OutOfBounds}
	for r := 0; r < p.Size(); r++ {
		for c := 0; c < p.Size(); c++ {
			y, x := r-h, c-h
			want := oob
			if buf.Contains(y, x) {
				want = buf.At(y, x)
			}
			if diff := cmp.Diff(want, p.At(r, c)); diff != "" {
				t.Errorf("Cell (%d, %d) mismatch (-want +got):\n%s", r, c, diff)
			}
		}
	}
}

func TestExtractLargerThanImage(t *testing.T) {
	buf := createTestBuffer(2, 2)
	p := NewExtractor(buf).Extract(1, 1, 3)

	if p.Size() != 7 {
		t.Fatalf("Expected patch size 7, got %d", p.Size())
	}
	if got := p.CountDead(0); got != 7*7-4 {
		t.Errorf("Expected %d out-of-bounds cells, got %d", 7*7-4, got)
	}
}

func TestMissingOrderAndBounds(t *testing.T) {
	buf := createTestBuffer(5, 5)
	buf.Set(0, 0, models.DeadPixel)
	buf.Set(0, 2, models.DeadPixel)
	buf.Set(1, 1, models.DeadPixel)
	buf.Set(4, 4, models.DeadPixel) // outside the window
	ext := NewExtractor(buf)

	var got []image.Point
	for pt := range ext.Missing(0, 0, 2) {
		got = append(got, pt)
	}
	want := []image.Point{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 1, Y: 1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Missing(0, 0, 2) mismatch (-want +got):\n%s", diff)
	}
}

func TestMissingSeesWrites(t *testing.T) {
	buf := createTestBuffer(5, 5)
	buf.Set(2, 2, models.DeadPixel)
	buf.Set(2, 3, models.DeadPixel)
	ext := NewExtractor(buf)

	visited := 0
	for pt := range ext.Missing(2, 2, 1) {
		visited++
		// Filling (2, 3) while visiting (2, 2) hides it from the rest of the scan
		if pt == (image.Point{X: 2, Y: 2}) {
			buf.Set(2, 3, models.Pixel{0, 0, 0})
		}
	}
	if visited != 1 {
		t.Errorf("Expected 1 visited pixel after filling ahead, got %d", visited)
	}

	// A fresh call rescans the buffer
	buf.Set(1, 1, models.DeadPixel)
	count := 0
	for range ext.Missing(2, 2, 1) {
		count++
	}
	if count != 2 {
		t.Errorf("Expected 2 dead pixels on rescan, got %d", count)
	}
}

func TestMissingEarlyStop(t *testing.T) {
	buf := createTestBuffer(4, 4)
	for j := 0; j < 4; j++ {
		buf.Set(0, j, models.DeadPixel)
	}
	n := 0
	for range NewExtractor(buf).Missing(0, 1, 2) {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Errorf("Expected to stop after 2 pixels, got %d", n)
	}
}
