package metrics

import (
	"errors"
	"math"
	"testing"

	"patchinpaint/internal/models"
)

// createTestBuffer fills a buffer with a gradient
func createTestBuffer(width, height int) *models.PixelBuffer {
	buf := models.NewPixelBuffer(width, height)
	for k := range buf.Pix {
		buf.Pix[k] = float64(k%97)/97 - 0.5
	}
	return buf
}

func TestCompareIdentical(t *testing.T) {
	a := createTestBuffer(8, 8)
	m, err := Compare(a, a.Clone(), nil)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if m.Pixels != 64 {
		t.Errorf("Expected 64 pixels, got %d", m.Pixels)
	}
	if m.RMSE != 0 || m.MAE != 0 || m.EntropyDiff != 0 {
		t.Errorf("Expected zero error, got %+v", m)
	}
	if !math.IsInf(m.PSNR, 1) {
		t.Errorf("Expected infinite PSNR, got %f", m.PSNR)
	}
	if math.Abs(m.SSIM-1) > 1e-12 {
		t.Errorf("Expected SSIM 1, got %f", m.SSIM)
	}
}

func TestCompareOffset(t *testing.T) {
	a := createTestBuffer(4, 4)
	b := a.Clone()
	for k := range b.Pix {
		b.Pix[k] += 0.1
	}

	m, err := Compare(a, b, nil)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if math.Abs(m.RMSE-0.1) > 1e-12 || math.Abs(m.MAE-0.1) > 1e-12 {
		t.Errorf("Expected RMSE and MAE of 0.1, got %f and %f", m.RMSE, m.MAE)
	}
	if math.Abs(m.PSNR-20) > 1e-9 {
		t.Errorf("Expected PSNR 20 dB, got %f", m.PSNR)
	}
	if m.SSIM >= 1 {
		t.Errorf("Expected SSIM below 1, got %f", m.SSIM)
	}
}

func TestCompareMask(t *testing.T) {
	a := createTestBuffer(3, 3)
	b := a.Clone()
	b.Set(1, 1, models.Pixel{0.5, 0.5, 0.5})
	b.Set(0, 0, models.Pixel{-0.5, -0.5, -0.5})

	mask := make([]bool, 9)
	mask[0] = true
	m, err := Compare(a, b, mask)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if m.Pixels != 1 {
		t.Errorf("Expected 1 pixel, got %d", m.Pixels)
	}

	mask[0] = false
	mask[2] = true
	m, err = Compare(a, b, mask)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if m.RMSE != 0 {
		t.Errorf("Expected unmasked differences to be ignored, got RMSE %f", m.RMSE)
	}
}

func TestCompareErrors(t *testing.T) {
	a := createTestBuffer(3, 3)
	if _, err := Compare(a, createTestBuffer(3, 4), nil); err == nil {
		t.Error("Expected an error for mismatched sizes")
	}
	if _, err := Compare(a, a, make([]bool, 4)); err == nil {
		t.Error("Expected an error for a short mask")
	}
	if _, err := Compare(a, a, make([]bool, 9)); !errors.Is(err, ErrNoPixels) {
		t.Errorf("Expected ErrNoPixels, got %v", err)
	}
}

func TestMutualInformationAndEdges(t *testing.T) {
	a := createTestBuffer(16, 12)

	m, err := Compare(a, a.Clone(), nil)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if !math.IsInf(m.MutualInformation, 1) {
		t.Errorf("Expected infinite mutual information, got %f", m.MutualInformation)
	}
	if m.EdgePreservation != 1 {
		t.Errorf("Expected edge preservation 1, got %f", m.EdgePreservation)
	}

	// Flattening the image destroys its edges
	flat := models.NewUniform(16, 12, models.Pixel{0, 0, 0.1})
	m, err = Compare(a, flat, nil)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if m.EdgePreservation > 0.5 {
		t.Errorf("Expected poor edge preservation, got %f", m.EdgePreservation)
	}
	if m.MutualInformation > 0.05 {
		t.Errorf("Expected little mutual information with a flat image, got %f", m.MutualInformation)
	}
}

func TestEdgeMapHighlightsStep(t *testing.T) {
	buf := models.NewUniform(16, 16, models.Pixel{0, 0, -0.4})
	for i := 0; i < 16; i++ {
		for j := 8; j < 16; j++ {
			buf.Set(i, j, models.Pixel{0, 0, 0.4})
		}
	}

	edges := edgeMap(buf, 2)
	// Column 8 sits on the step, column 4 is far from both the step and the wrap-around edge
	if edges[3*16+8] <= edges[3*16+4] {
		t.Errorf("Expected a stronger response at the step, got %f vs %f", edges[3*16+8], edges[3*16+4])
	}
	for _, v := range edges {
		if v < 0 || v > 1+1e-12 {
			t.Fatalf("Edge value %f outside [0, 1]", v)
		}
	}
}
