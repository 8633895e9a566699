package metrics

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"patchinpaint/internal/models"
)

// edgeCutoff is the relative frequency below which the high-pass filter
// attenuates the spectrum
const edgeCutoff = 0.1

// edgeMap returns the strength of the high-frequency content of channel c,
// normalised to [0, 1]. The channel is filtered in the frequency domain with
// a Gaussian high-pass and the magnitude of the result taken per pixel.
func edgeMap(buf *models.PixelBuffer, c int) []float64 {
	width, height := buf.Width, buf.Height
	n := width * height

	data := make([]complex128, n)
	for k := 0; k < n; k++ {
		data[k] = complex(buf.Pix[k*models.Channels+c], 0)
	}

	spectrum := fft2D(data, width, height, false)

	sigma2 := 2 * edgeCutoff * edgeCutoff
	for i := 0; i < height; i++ {
		fy := relativeFrequency(i, height)
		for j := 0; j < width; j++ {
			fx := relativeFrequency(j, width)
			spectrum[i*width+j] *= complex(1-math.Exp(-(fx*fx+fy*fy)/sigma2), 0)
		}
	}

	filtered := fft2D(spectrum, width, height, true)

	edges := make([]float64, n)
	maxEdge := 0.0
	for k, v := range filtered {
		edges[k] = cmplx.Abs(v)
		maxEdge = math.Max(maxEdge, edges[k])
	}
	if maxEdge < 1e-12 {
		// Flat input, only rounding noise is left
		clear(edges)
	} else {
		for k := range edges {
			edges[k] /= maxEdge
		}
	}
	return edges
}

// fft2D transforms a row-major width x height grid, rows first, then columns.
// The inverse is left unscaled.
func fft2D(data []complex128, width, height int, inverse bool) []complex128 {
	result := make([]complex128, len(data))

	rowFFT := fourier.NewCmplxFFT(width)
	row := make([]complex128, width)
	for i := 0; i < height; i++ {
		src := data[i*width : (i+1)*width]
		if inverse {
			rowFFT.Sequence(row, src)
		} else {
			rowFFT.Coefficients(row, src)
		}
		copy(result[i*width:], row)
	}

	colFFT := fourier.NewCmplxFFT(height)
	col := make([]complex128, height)
	out := make([]complex128, height)
	for j := 0; j < width; j++ {
		for i := 0; i < height; i++ {
			col[i] = result[i*width+j]
		}
		if inverse {
			colFFT.Sequence(out, col)
		} else {
			colFFT.Coefficients(out, col)
		}
		for i := 0; i < height; i++ {
			result[i*width+j] = out[i]
		}
	}
	return result
}

// relativeFrequency folds coefficient index k of an n-point transform into
// [-0.5, 0.5)
func relativeFrequency(k, n int) float64 {
	if k >= (n+1)/2 {
		k -= n
	}
	return float64(k) / float64(n)
}
