// Package lasso fits L1-regularised linear models by coordinate descent.
//
// The objective matches the usual Lasso formulation
//
//	(1 / (2 * nSamples)) * ||y - Xw - b||^2 + alpha * ||w||_1
//
// where b is an unpenalised intercept.
package lasso

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrNoSamples is returned by Fit when the design matrix has no rows.
	ErrNoSamples = errors.New("lasso: no samples to fit")

	// ErrDimensionMismatch is returned when matrix and vector shapes disagree.
	ErrDimensionMismatch = errors.New("lasso: dimension mismatch")

	// ErrNotFitted is returned by Predict before a successful Fit.
	ErrNotFitted = errors.New("lasso: model not fitted")
)

// Selection controls the order in which coefficients are updated
type Selection int

const (
	// Cyclic updates coefficients in index order on every sweep.
	Cyclic Selection = iota
	// Random updates coefficients in a seeded pseudo-random order.
	Random
)

func (s Selection) String() string {
	switch s {
	case Cyclic:
		return "cyclic"
	case Random:
		return "random"
	default:
		return fmt.Sprintf("Selection(%d)", int(s))
	}
}

// ParseSelection converts "cyclic" or "random" to a Selection.
func ParseSelection(s string) (Selection, error) {
	switch s {
	case "", "cyclic":
		return Cyclic, nil
	case "random":
		return Random, nil
	default:
		return Cyclic, fmt.Errorf("unknown coefficient selection %q", s)
	}
}

// Lasso holds the solver settings and, after Fit, the learned model.
// A Lasso is not safe for concurrent use.
type Lasso struct {
	// Alpha is the L1 penalty strength
	Alpha float64

	// MaxIter caps the number of full coordinate sweeps
	MaxIter int

	// Tol is the convergence tolerance on coefficient updates and duality gap
	Tol float64

	// FitIntercept fits an unpenalised intercept by centring X and y
	FitIntercept bool

	// Positive constrains every coefficient to be >= 0
	Positive bool

	// Selection is the coordinate update order
	Selection Selection

	// Seed feeds the random order when Selection is Random
	Seed int64

	// Coef and Intercept are set by Fit
	Coef      []float64
	Intercept float64

	// NIter is the number of sweeps the last Fit performed
	NIter int

	// Converged reports whether the last Fit met the tolerance before MaxIter
	Converged bool

	// DualGap is the duality gap at the end of the last Fit
	DualGap float64
}

// New returns a Lasso configured with the given settings, fitting an intercept
// with cyclic selection.
func New(alpha float64, maxIter int, tol float64) *Lasso {
	return &Lasso{
		Alpha:        alpha,
		MaxIter:      maxIter,
		Tol:          tol,
		FitIntercept: true,
		Selection:    Cyclic,
	}
}

// Fit learns coefficients for the samples in x (one row per sample, one
// column per feature) against targets y.
func (l *Lasso) Fit(x mat.Matrix, y []float64) error {
	n, p := x.Dims()
	if n == 0 {
		return ErrNoSamples
	}
	if len(y) != n {
		return fmt.Errorf("%w: %d samples but %d targets", ErrDimensionMismatch, n, len(y))
	}

	// Work on columns: every coordinate update touches one feature at a time
	cols := make([][]float64, p)
	xMean := make([]float64, p)
	for j := 0; j < p; j++ {
		cols[j] = mat.Col(nil, j, x)
		if l.FitIntercept {
			xMean[j] = stat.Mean(cols[j], nil)
			floats.AddConst(-xMean[j], cols[j])
		}
	}
	target := make([]float64, n)
	copy(target, y)
	yMean := 0.0
	if l.FitIntercept {
		yMean = stat.Mean(target, nil)
		floats.AddConst(-yMean, target)
	}

	w := make([]float64, p)
	l.NIter, l.Converged, l.DualGap = l.descend(cols, target, w)

	l.Coef = w
	l.Intercept = 0
	if l.FitIntercept {
		l.Intercept = yMean - floats.Dot(xMean, w)
	}
	return nil
}

// descend runs coordinate descent in place on w and returns the number of
// sweeps, whether the tolerance was met and the final duality gap.
func (l *Lasso) descend(cols [][]float64, y, w []float64) (int, bool, float64) {
	n := len(y)
	p := len(cols)
	penalty := l.Alpha * float64(n)

	normCols := make([]float64, p)
	for j := range cols {
		normCols[j] = floats.Dot(cols[j], cols[j])
	}

	// Residual starts at y since w starts at zero
	residual := make([]float64, n)
	copy(residual, y)

	tol := l.Tol * floats.Dot(y, y)
	order := make([]int, p)
	for j := range order {
		order[j] = j
	}
	var rng *rand.Rand
	if l.Selection == Random {
		rng = rand.New(rand.NewSource(l.Seed))
	}

	gap := tol + 1
	for iter := 0; iter < l.MaxIter; iter++ {
		if rng != nil {
			rng.Shuffle(p, func(a, b int) { order[a], order[b] = order[b], order[a] })
		}

		wMax, dwMax := 0.0, 0.0
		for _, j := range order {
			if normCols[j] == 0 {
				continue
			}
			old := w[j]
			if old != 0 {
				floats.AddScaled(residual, old, cols[j])
			}

			rho := floats.Dot(cols[j], residual)
			if l.Positive && rho < 0 {
				w[j] = 0
			} else {
				w[j] = softThreshold(rho, penalty) / normCols[j]
			}

			if w[j] != 0 {
				floats.AddScaled(residual, -w[j], cols[j])
			}

			dwMax = math.Max(dwMax, math.Abs(w[j]-old))
			wMax = math.Max(wMax, math.Abs(w[j]))
		}

		if wMax == 0 || dwMax/wMax < l.Tol || iter == l.MaxIter-1 {
			gap = dualityGap(cols, y, w, residual, penalty, l.Positive)
			if gap <= tol {
				return iter + 1, true, gap
			}
		}
	}
	return l.MaxIter, false, gap
}

func softThreshold(v, t float64) float64 {
	switch {
	case v > t:
		return v - t
	case v < -t:
		return v + t
	default:
		return 0
	}
}

// dualityGap evaluates the primal-dual gap of the unscaled problem
// 0.5*||y - Xw||^2 + penalty*||w||_1 for the current iterate.
func dualityGap(cols [][]float64, y, w, residual []float64, penalty float64, positive bool) float64 {
	dualNorm := 0.0
	for j := range cols {
		v := floats.Dot(cols[j], residual)
		if !positive {
			v = math.Abs(v)
		}
		dualNorm = math.Max(dualNorm, v)
	}

	rNorm2 := floats.Dot(residual, residual)
	scale := 1.0
	gap := rNorm2
	if dualNorm > penalty {
		scale = penalty / dualNorm
		gap = 0.5 * (rNorm2 + rNorm2*scale*scale)
	}

	l1 := 0.0
	for _, v := range w {
		l1 += math.Abs(v)
	}
	return gap + penalty*l1 - scale*floats.Dot(residual, y)
}

// Predict returns X*Coef + Intercept for every row of x.
func (l *Lasso) Predict(x mat.Matrix) ([]float64, error) {
	if l.Coef == nil {
		return nil, ErrNotFitted
	}
	n, p := x.Dims()
	if p != len(l.Coef) {
		return nil, fmt.Errorf("%w: model has %d features, input has %d", ErrDimensionMismatch, len(l.Coef), p)
	}

	values := make([]float64, n)
	if n == 0 {
		return values, nil
	}
	if p > 0 {
		out := mat.NewVecDense(n, values)
		out.MulVec(x, mat.NewVecDense(p, l.Coef))
	}
	floats.AddConst(l.Intercept, values)
	return values, nil
}

// FitConverged reports whether the last Fit met the tolerance.
func (l *Lasso) FitConverged() bool {
	return l.Converged
}

// NonZero returns the number of non-zero coefficients.
func (l *Lasso) NonZero() int {
	n := 0
	for _, v := range l.Coef {
		if v != 0 {
			n++
		}
	}
	return n
}
