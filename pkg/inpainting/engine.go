// Package inpainting reconstructs dead pixels of an image from sparse
// combinations of intact patches sampled from the same image.
package inpainting

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"patchinpaint/internal/models"
	"patchinpaint/pkg/dictionary"
	"patchinpaint/pkg/lasso"
	"patchinpaint/pkg/patch"
	"patchinpaint/pkg/regression"
)

// State is a phase of the fill loop
type State int

const (
	// Idle is the state before the first run.
	Idle State = iota
	// Scanning searches for the next dead pixel in row-major order.
	Scanning
	// Fitting regresses the patch around the dead pixel.
	Fitting
	// Writing stores predictions for every dead pixel of the patch.
	Writing
	// Done means no dead pixel remains.
	Done
	// Failed means the run stopped on an error.
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scanning:
		return "scanning"
	case Fitting:
		return "fitting"
	case Writing:
		return "writing"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Params holds the inpainting parameters.
type Params struct {
	// PatchHalfSize is h; patches are (2h+1)x(2h+1).
	PatchHalfSize int

	// Stride is the distance between dictionary candidate centres.
	// Zero means PatchHalfSize.
	Stride int

	// MaxMissingPerAtom is the number of dead pixels an atom may contain.
	// Zero accepts intact windows only.
	MaxMissingPerAtom int

	// NearestAtoms restricts each fit to the atoms whose centres are closest
	// to the patch centre. Zero uses the whole dictionary.
	NearestAtoms int

	// Alpha is the L1 regularisation strength.
	Alpha float64

	// MaxIterations caps the solver's coordinate sweeps per fit.
	MaxIterations int

	// Tolerance is the solver's convergence tolerance.
	Tolerance float64

	// ParallelChannels fits the three colour channels concurrently. The fill
	// order, and therefore the output, is unaffected.
	ParallelChannels bool

	// Solver overrides the per-channel solver. Nil uses lasso with Alpha,
	// MaxIterations and Tolerance.
	Solver regression.SolverFactory

	// OnStep is called after every writing phase.
	OnStep func(Step)

	// Progress receives fill progress. Nil disables progress output.
	Progress ProgressCallback

	// Logger receives structured diagnostics. Nil discards them.
	Logger *slog.Logger
}

// Step describes one pass through the fill loop.
type Step struct {
	// Iteration counts from 1
	Iteration int

	// Center is the dead pixel the patch was centred on
	Center image.Point

	// Written is the number of pixels filled by this step
	Written int

	// Remaining is the number of dead pixels left after this step
	Remaining int

	// Converged is false if the solver hit its iteration cap on some channel
	Converged bool
}

// Stats summarises a run.
type Stats struct {
	InitialDead    int
	Filled         int
	Iterations     int
	DictionarySize int
	NonConverged   int
	Duration       time.Duration
}

// Engine runs the fill loop. It keeps no reference to the image between
// runs; an Engine may be reused but not shared between goroutines.
type Engine struct {
	params    Params
	regressor *regression.Regressor
	logger    *slog.Logger

	state State
	stats Stats
}

// NewEngine validates params and creates an engine.
func NewEngine(params Params) (*Engine, error) {
	if params.Stride == 0 {
		params.Stride = params.PatchHalfSize
	}
	if err := params.validate(); err != nil {
		return nil, err
	}

	solver := params.Solver
	if solver == nil {
		solver = regression.LassoFactory(params.Alpha, params.MaxIterations, params.Tolerance)
	}
	logger := params.Logger
	if logger == nil {
		logger = newNopLogger()
	}

	return &Engine{
		params:    params,
		regressor: regression.NewRegressor(solver, params.ParallelChannels),
		logger:    logger,
	}, nil
}

func (p Params) validate() error {
	switch {
	case p.PatchHalfSize <= 0:
		return fmt.Errorf("%w: patch half-size must be positive, got %d", ErrInvalidConfiguration, p.PatchHalfSize)
	case p.Stride <= 0:
		return fmt.Errorf("%w: stride must be positive, got %d", ErrInvalidConfiguration, p.Stride)
	case p.MaxMissingPerAtom < 0:
		return fmt.Errorf("%w: max missing per atom must be non-negative, got %d", ErrInvalidConfiguration, p.MaxMissingPerAtom)
	case p.NearestAtoms < 0:
		return fmt.Errorf("%w: nearest atoms must be non-negative, got %d", ErrInvalidConfiguration, p.NearestAtoms)
	}
	if p.Solver == nil {
		switch {
		case p.Alpha <= 0:
			return fmt.Errorf("%w: alpha must be positive, got %g", ErrInvalidConfiguration, p.Alpha)
		case p.MaxIterations <= 0:
			return fmt.Errorf("%w: max iterations must be positive, got %d", ErrInvalidConfiguration, p.MaxIterations)
		case p.Tolerance <= 0:
			return fmt.Errorf("%w: tolerance must be positive, got %g", ErrInvalidConfiguration, p.Tolerance)
		}
	}
	return nil
}

// State returns the phase the engine is in, or ended in.
func (e *Engine) State() State { return e.state }

// Stats returns the statistics of the last run.
func (e *Engine) Stats() Stats { return e.stats }

// CheckBounds reports ErrOutOfBoundsConfiguration if no patch of the
// configured size fits inside a width x height image.
func (e *Engine) CheckBounds(width, height int) error {
	h := e.params.PatchHalfSize
	if 2*h >= min(width, height) {
		return fmt.Errorf("%w: half-size %d needs at least %dx%d pixels, image is %dx%d",
			ErrOutOfBoundsConfiguration, h, 2*h+1, 2*h+1, width, height)
	}
	return nil
}

// Inpaint fills every dead pixel of buf in place.
//
// The loop repeatedly takes the first dead pixel in row-major order, fits the
// patch around it against the dictionary and writes a prediction into every
// pixel of that patch that is still dead. Each write is visible to the rest
// of the same patch and to later patches, so the fill order determines the
// result and two runs on the same input are identical.
//
// Images without dead pixels are left untouched. On error the buffer may be
// partially filled; the error says why the run stopped.
//
// Parameters:
//   - buf: the image to repair, mutated in place
//
// Returns:
//   - nil once no dead pixel remains, or an error wrapping one of
//     ErrOutOfBoundsConfiguration, ErrEmptyDictionary or ErrDegenerateFit
func (e *Engine) Inpaint(buf *models.PixelBuffer) (err error) {
	start := time.Now()
	e.stats = Stats{}
	e.state = Idle
	defer func() {
		e.stats.Duration = time.Since(start)
		if err != nil {
			e.state = Failed
		}
	}()

	if buf == nil || len(buf.Pix) != buf.Width*buf.Height*models.Channels {
		return errors.New("inpainting: pixel buffer is nil or inconsistent")
	}
	if err := e.CheckBounds(buf.Width, buf.Height); err != nil {
		return err
	}

	e.stats.InitialDead = buf.CountDead()
	if e.stats.InitialDead == 0 {
		e.state = Done
		return nil
	}

	h := e.params.PatchHalfSize
	dict, err := dictionary.Build(buf, e.params.Stride, h, e.params.MaxMissingPerAtom)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	e.stats.DictionarySize = dict.Len()
	if dict.Len() == 0 {
		return fmt.Errorf("%w: no window with at most %d dead pixels at stride %d, half-size %d",
			ErrEmptyDictionary, e.params.MaxMissingPerAtom, e.params.Stride, h)
	}
	e.logger.Info("dictionary built", "atoms", dict.Len(), "stride", e.params.Stride, "halfSize", h)
	e.report(fmt.Sprintf("Dictionary: %d atoms", dict.Len()))

	ext := patch.NewExtractor(buf)
	remaining := e.stats.InitialDead
	cursor := 0

	for {
		// Scanning. Pixels before the cursor were filled and stay live.
		e.state = Scanning
		k := buf.NextDead(cursor)
		if k < 0 {
			break
		}
		cursor = k
		i, j := k/buf.Width, k%buf.Width

		// Fitting
		e.state = Fitting
		query := ext.Extract(i, j, h)
		var atoms []int
		if e.params.NearestAtoms > 0 {
			atoms = dict.Nearest(i, j, e.params.NearestAtoms)
		}
		model, err := e.regressor.Fit(dict, query, atoms)
		if err != nil {
			if errors.Is(err, lasso.ErrNoSamples) {
				return fmt.Errorf("%w: patch at (%d, %d): %w", ErrDegenerateFit, i, j, err)
			}
			return fmt.Errorf("fitting patch at (%d, %d): %w", i, j, err)
		}
		if !model.Converged {
			e.stats.NonConverged++
			e.logger.Warn("solver did not converge", "row", i, "col", j, "maxIterations", e.params.MaxIterations)
		}

		// Writing
		e.state = Writing
		written := 0
		for pt := range ext.Missing(i, j, h) {
			px, err := model.Predict(pt.Y-i+h, pt.X-j+h)
			if err != nil {
				return fmt.Errorf("%w: predicting (%d, %d): %w", ErrDegenerateFit, pt.Y, pt.X, err)
			}
			if models.IsDead(px) {
				return fmt.Errorf("%w: prediction for (%d, %d) falls on the dead sentinel", ErrDegenerateFit, pt.Y, pt.X)
			}
			buf.Set(pt.Y, pt.X, px)
			written++
		}
		if written == 0 {
			// The centre was dead a moment ago, so this cannot happen unless
			// the buffer is modified concurrently.
			return fmt.Errorf("inpainting: no pixel written around (%d, %d)", i, j)
		}

		remaining -= written
		e.stats.Iterations++
		e.stats.Filled += written
		e.logger.Debug("patch filled",
			"row", i, "col", j,
			"live", model.Live[0], "written", written, "remaining", remaining)

		if e.params.OnStep != nil {
			e.params.OnStep(Step{
				Iteration: e.stats.Iterations,
				Center:    image.Point{X: j, Y: i},
				Written:   written,
				Remaining: remaining,
				Converged: model.Converged,
			})
		}
		if e.params.Progress != nil {
			e.params.Progress(e.stats.Filled, e.stats.InitialDead, "")
		}
	}

	e.state = Done
	e.logger.Info("inpainting finished",
		"filled", e.stats.Filled, "iterations", e.stats.Iterations, "nonConverged", e.stats.NonConverged)
	return nil
}

func (e *Engine) report(message string) {
	if e.params.Progress != nil {
		e.params.Progress(0, 0, message)
	}
}
