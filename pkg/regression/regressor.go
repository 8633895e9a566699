// Package regression fits a sparse combination of dictionary atoms to a
// partially observed query patch, one colour channel at a time.
package regression

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"

	"patchinpaint/internal/models"
	"patchinpaint/pkg/dictionary"
	"patchinpaint/pkg/lasso"
)

// ErrEmptyMask is returned when a channel of the query patch has no live
// pixel to fit against. It wraps lasso.ErrNoSamples.
var ErrEmptyMask = fmt.Errorf("query patch has no live pixels: %w", lasso.ErrNoSamples)

// Solver is the sparse regression capability used per channel. Fit takes a
// samples x features design matrix; Predict maps rows of the same feature
// layout to values.
type Solver interface {
	Fit(x mat.Matrix, y []float64) error
	Predict(x mat.Matrix) ([]float64, error)
}

// SolverFactory creates a fresh, unfitted solver.
type SolverFactory func() Solver

// LassoFactory returns a factory for lasso solvers with an intercept, cyclic
// selection and no positivity constraint.
func LassoFactory(alpha float64, maxIter int, tol float64) SolverFactory {
	return func() Solver {
		return lasso.New(alpha, maxIter, tol)
	}
}

// convergenceReporter is implemented by solvers that report whether the last
// fit met its tolerance.
type convergenceReporter interface {
	FitConverged() bool
}

// Regressor fits query patches against a dictionary.
type Regressor struct {
	newSolver SolverFactory

	// parallel fits the three channels concurrently. Channel fits share no
	// state, so the result is identical either way.
	parallel bool
}

// NewRegressor creates a regressor that builds per-channel solvers with newSolver.
func NewRegressor(newSolver SolverFactory, parallelChannels bool) *Regressor {
	return &Regressor{newSolver: newSolver, parallel: parallelChannels}
}

// Model is the result of fitting one query patch: a fitted solver per
// channel, over a fixed selection of atoms.
type Model struct {
	dict    *dictionary.Dictionary
	atoms   []int
	solvers [models.Channels]Solver

	// Converged is false if any channel's solver hit its iteration cap
	Converged bool

	// Live holds the number of live positions used to fit each channel
	Live [models.Channels]int
}

// Fit fits every channel of query against the given atoms of dict.
//
// For channel c, the samples are the positions of query whose channel c value
// is live; out-of-bounds and dead cells are excluded. The features are the
// values of each selected atom at those positions.
//
// Parameters:
//   - dict: a non-empty dictionary with the same half-size as query
//   - query: the patch to reconstruct
//   - atoms: indices of the atoms to use, or nil for all of them
//
// Returns:
//   - the fitted model, or an error wrapping ErrEmptyMask if some channel has
//     no live pixel
func (r *Regressor) Fit(dict *dictionary.Dictionary, query models.Patch, atoms []int) (*Model, error) {
	if dict.Len() == 0 {
		return nil, errors.New("cannot fit against an empty dictionary")
	}
	if query.HalfSize != dict.HalfSize() {
		return nil, fmt.Errorf("query half-size %d does not match dictionary half-size %d", query.HalfSize, dict.HalfSize())
	}
	if atoms == nil {
		atoms = dict.All()
	}

	m := &Model{dict: dict, atoms: atoms, Converged: true}
	var errs [models.Channels]error

	fitChannel := func(c int) {
		m.solvers[c], m.Live[c], errs[c] = r.fitChannel(dict, query, atoms, c)
	}

	if r.parallel {
		var wg sync.WaitGroup
		for c := 0; c < models.Channels; c++ {
			wg.Add(1)
			go func(c int) {
				defer wg.Done()
				fitChannel(c)
			}(c)
		}
		wg.Wait()
	} else {
		for c := 0; c < models.Channels; c++ {
			fitChannel(c)
		}
	}

	for c := 0; c < models.Channels; c++ {
		if errs[c] != nil {
			return nil, fmt.Errorf("channel %d: %w", c, errs[c])
		}
		if cv, ok := m.solvers[c].(convergenceReporter); ok && !cv.FitConverged() {
			m.Converged = false
		}
	}
	return m, nil
}

func (r *Regressor) fitChannel(dict *dictionary.Dictionary, query models.Patch, atoms []int, c int) (Solver, int, error) {
	values := query.Channel(c)

	var live []int
	for pos, v := range values {
		if models.IsLive(v) {
			live = append(live, pos)
		}
	}
	if len(live) == 0 {
		return nil, 0, ErrEmptyMask
	}

	full := dict.Channel(c)
	design := mat.NewDense(len(live), len(atoms), nil)
	target := make([]float64, len(live))
	for row, pos := range live {
		src := full.RawRowView(pos)
		for col, k := range atoms {
			design.Set(row, col, src[k])
		}
		target[row] = values[pos]
	}

	s := r.newSolver()
	if err := s.Fit(design, target); err != nil {
		return nil, len(live), err
	}
	return s, len(live), nil
}

// Predict reconstructs the pixel at patch row r, column col from the fitted
// coefficients. Every position can be predicted, including ones that were
// dead in the query, because atoms carry values everywhere.
func (m *Model) Predict(r, col int) (models.Pixel, error) {
	pos := r*(2*m.dict.HalfSize()+1) + col
	var px models.Pixel
	row := mat.NewDense(1, len(m.atoms), nil)
	for c := 0; c < models.Channels; c++ {
		src := m.dict.Channel(c).RawRowView(pos)
		for j, k := range m.atoms {
			row.Set(0, j, src[k])
		}
		v, err := m.solvers[c].Predict(row)
		if err != nil {
			return px, fmt.Errorf("channel %d: %w", c, err)
		}
		if math.IsNaN(v[0]) || math.IsInf(v[0], 0) {
			return px, fmt.Errorf("channel %d: prediction at (%d, %d) is not finite", c, r, col)
		}
		px[c] = v[0]
	}
	return px, nil
}

// FitAndPredict fits query against every atom of dict and returns the
// reconstruction of the whole patch.
func (r *Regressor) FitAndPredict(dict *dictionary.Dictionary, query models.Patch) (models.Patch, error) {
	out := models.NewPatch(query.HalfSize)
	m, err := r.Fit(dict, query, nil)
	if err != nil {
		return out, err
	}
	size := out.Size()
	for row := 0; row < size; row++ {
		for col := 0; col < size; col++ {
			px, err := m.Predict(row, col)
			if err != nil {
				return out, err
			}
			copy(out.Pix[(row*size+col)*models.Channels:], px[:])
		}
	}
	return out, nil
}
