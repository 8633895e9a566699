// Package metrics measures how closely a restored image matches a reference.
package metrics

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"patchinpaint/internal/models"
)

// Metrics holds reconstruction quality measures, computed over every
// channel value of the compared pixels.
type Metrics struct {
	// Pixels is the number of pixels compared
	Pixels int

	// RMSE is the root mean square error. Lower is better.
	RMSE float64

	// MAE is the mean absolute error. Lower is better.
	MAE float64

	// PSNR is the peak signal-to-noise ratio in dB for a unit dynamic range.
	// It is +Inf for identical inputs.
	PSNR float64

	// SSIM is a global structural similarity index in [-1, 1]; 1 means identical.
	SSIM float64

	// EntropyDiff is the absolute difference of the value histograms' Shannon entropy.
	EntropyDiff float64

	// MutualInformation in nats, under a Gaussian approximation. It is +Inf
	// for perfectly correlated inputs.
	MutualInformation float64

	// EdgePreservation is the correlation of the high-frequency maps of the
	// value channel over the compared pixels; 1 means edges are reproduced.
	EdgePreservation float64
}

// ErrNoPixels is returned when the mask selects nothing.
var ErrNoPixels = errors.New("metrics: no pixels to compare")

// Compare measures restored against reference. If mask is non-nil, only pixels
// whose row-major index is true are compared; typically the dead mask taken
// before inpainting.
func Compare(reference, restored *models.PixelBuffer, mask []bool) (Metrics, error) {
	if reference.Width != restored.Width || reference.Height != restored.Height {
		return Metrics{}, fmt.Errorf("metrics: size mismatch %dx%d vs %dx%d",
			reference.Width, reference.Height, restored.Width, restored.Height)
	}
	n := reference.Width * reference.Height
	if mask != nil && len(mask) != n {
		return Metrics{}, fmt.Errorf("metrics: mask has %d entries for %d pixels", len(mask), n)
	}

	var original, reconstructed []float64
	pixels := 0
	for k := 0; k < n; k++ {
		if mask != nil && !mask[k] {
			continue
		}
		off := k * models.Channels
		original = append(original, reference.Pix[off:off+models.Channels]...)
		reconstructed = append(reconstructed, restored.Pix[off:off+models.Channels]...)
		pixels++
	}
	if pixels == 0 {
		return Metrics{}, ErrNoPixels
	}

	m := Metrics{Pixels: pixels}
	m.RMSE = calculateRMSE(original, reconstructed)
	m.MAE = calculateMAE(original, reconstructed)
	m.PSNR = math.Inf(1)
	if m.RMSE > 0 {
		m.PSNR = 20 * math.Log10(1/m.RMSE)
	}
	m.SSIM = calculateSSIM(original, reconstructed)
	m.EntropyDiff = math.Abs(calculateEntropy(original) - calculateEntropy(reconstructed))
	m.MutualInformation = calculateMutualInformation(original, reconstructed)
	m.EdgePreservation = calculateEdgePreservation(reference, restored, mask)
	return m, nil
}

// calculateRMSE computes the root mean square error
func calculateRMSE(original, reconstructed []float64) float64 {
	mse := 0.0
	for i := range original {
		diff := original[i] - reconstructed[i]
		mse += diff * diff
	}
	mse /= float64(len(original))
	return math.Sqrt(mse)
}

func calculateMAE(original, reconstructed []float64) float64 {
	sum := 0.0
	for i := range original {
		sum += math.Abs(original[i] - reconstructed[i])
	}
	return sum / float64(len(original))
}

// calculateSSIM computes the Structural Similarity Index over the whole set
// of values, without a sliding window
func calculateSSIM(original, reconstructed []float64) float64 {
	const L = 1.0 // Dynamic range
	const k1 = 0.01
	const k2 = 0.03

	c1 := (k1 * L) * (k1 * L)
	c2 := (k2 * L) * (k2 * L)

	muX := stat.Mean(original, nil)
	muY := stat.Mean(reconstructed, nil)

	// A single value has no variance
	sigmaX, sigmaY, sigmaXY := 0.0, 0.0, 0.0
	if len(original) > 1 {
		sigmaX = stat.Variance(original, nil)
		sigmaY = stat.Variance(reconstructed, nil)
		sigmaXY = stat.Covariance(original, reconstructed, nil)
	}

	num := (2*muX*muY + c1) * (2*sigmaXY + c2)
	den := (muX*muX + muY*muY + c1) * (sigmaX + sigmaY + c2)
	if den > 0 {
		return num / den
	}
	return 0
}

// calculateMutualInformation estimates the mutual information of two samples
// assumed jointly Gaussian: -0.5 * log(1 - rho^2)
func calculateMutualInformation(original, reconstructed []float64) float64 {
	if floats.Equal(original, reconstructed) {
		return math.Inf(1)
	}
	if len(original) < 2 {
		return 0
	}
	rho := stat.Correlation(original, reconstructed, nil)
	if math.IsNaN(rho) {
		return 0
	}
	if rho*rho >= 1 {
		return math.Inf(1)
	}
	return -0.5 * math.Log(1-rho*rho)
}

// calculateEdgePreservation correlates the edge maps of the value channel at
// the selected pixels
func calculateEdgePreservation(reference, restored *models.PixelBuffer, mask []bool) float64 {
	const valueChannel = 2
	refEdges := edgeMap(reference, valueChannel)
	resEdges := edgeMap(restored, valueChannel)

	var a, b []float64
	for k := range refEdges {
		if mask != nil && !mask[k] {
			continue
		}
		a = append(a, refEdges[k])
		b = append(b, resEdges[k])
	}
	if floats.EqualApprox(a, b, 1e-12) {
		return 1
	}
	if len(a) < 2 {
		return 0
	}
	corr := stat.Correlation(a, b, nil)
	if math.IsNaN(corr) {
		return 0
	}
	return corr
}

// calculateEntropy computes the Shannon entropy of a 256-bin histogram
// over the valid value range
func calculateEntropy(data []float64) float64 {
	const numBins = 256
	const lo, hi = -0.5, 0.5

	hist := make([]float64, numBins)
	for _, v := range data {
		binIdx := int((v - lo) / (hi - lo) * numBins)
		if binIdx >= numBins {
			binIdx = numBins - 1
		} else if binIdx < 0 {
			binIdx = 0
		}
		hist[binIdx]++
	}

	entropy := 0.0
	for _, count := range hist {
		if count > 0 {
			p := count / float64(len(data))
			entropy -= p * math.Log2(p)
		}
	}
	return entropy
}
