package inpainting

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"patchinpaint/internal/models"
	"patchinpaint/pkg/damage"
)

// createTexture builds a smooth, non-repeating test image
func createTexture(width, height int) *models.PixelBuffer {
	buf := models.NewPixelBuffer(width, height)
	for i := 0; i < height; i++ {
		for j := 0; j < width; j++ {
			fi, fj := float64(i), float64(j)
			buf.Set(i, j, models.Pixel{
				0.4 * math.Sin(0.21*fi+0.13*fj),
				0.3 * math.Cos(0.17*fj) * math.Sin(0.11*fi+1),
				0.2*math.Sin(0.05*(fi+fj)) + 0.1,
			})
		}
	}
	return buf
}

// testParams returns small, fast settings for synthetic images
func testParams(h int) Params {
	return Params{
		PatchHalfSize: h,
		Alpha:         1e-4,
		MaxIterations: 500,
		Tolerance:     1e-3,
	}
}

func newTestEngine(t *testing.T, params Params) *Engine {
	t.Helper()
	e, err := NewEngine(params)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return e
}

func TestNewEngineValidation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Params)
	}{
		{"zero patch", func(p *Params) { p.PatchHalfSize = 0 }},
		{"negative stride", func(p *Params) { p.Stride = -1 }},
		{"negative tolerance of missing pixels", func(p *Params) { p.MaxMissingPerAtom = -1 }},
		{"negative nearest atoms", func(p *Params) { p.NearestAtoms = -2 }},
		{"zero alpha", func(p *Params) { p.Alpha = 0 }},
		{"zero iterations", func(p *Params) { p.MaxIterations = 0 }},
		{"zero tolerance", func(p *Params) { p.Tolerance = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testParams(3)
			tt.modify(&p)
			if _, err := NewEngine(p); !errors.Is(err, ErrInvalidConfiguration) {
				t.Errorf("Expected ErrInvalidConfiguration, got %v", err)
			}
		})
	}
}

func TestStrideDefaultsToPatchHalfSize(t *testing.T) {
	e := newTestEngine(t, testParams(4))
	if e.params.Stride != 4 {
		t.Errorf("Expected stride 4, got %d", e.params.Stride)
	}
}

func TestInpaintNoDeadPixelsIsNoop(t *testing.T) {
	buf := createTexture(30, 30)
	original := buf.Clone()

	e := newTestEngine(t, testParams(3))
	if err := e.Inpaint(buf); err != nil {
		t.Fatalf("Inpaint failed: %v", err)
	}
	if diff := cmp.Diff(original.Pix, buf.Pix); diff != "" {
		t.Errorf("Image changed without dead pixels (-want +got):\n%s", diff)
	}
	if e.State() != Done {
		t.Errorf("Expected state done, got %v", e.State())
	}
	if e.Stats().Iterations != 0 {
		t.Errorf("Expected no iterations, got %d", e.Stats().Iterations)
	}
}

func TestInpaintUniformRegion(t *testing.T) {
	color := models.Pixel{0.1, -0.2, 0.3}
	buf := models.NewUniform(100, 100, color)
	if _, err := damage.Remove(buf, 45, 45, 10, 10); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	p := testParams(5)
	p.Stride = 5
	p.MaxIterations = 100000
	p.Tolerance = 1e-4
	e := newTestEngine(t, p)

	if err := e.Inpaint(buf); err != nil {
		t.Fatalf("Inpaint failed: %v", err)
	}
	if buf.CountDead() != 0 {
		t.Fatalf("Expected no dead pixels, got %d", buf.CountDead())
	}
	for i := 45; i < 55; i++ {
		for j := 45; j < 55; j++ {
			px := buf.At(i, j)
			for c := 0; c < models.Channels; c++ {
				if math.Abs(px[c]-color[c]) > 1e-6 {
					t.Fatalf("Pixel (%d, %d) channel %d = %f, want %f", i, j, c, px[c], color[c])
				}
			}
		}
	}
}

func TestInpaintMonotonicProgress(t *testing.T) {
	buf := createTexture(40, 40)
	if _, err := damage.Remove(buf, 15, 12, 7, 9); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	initial := buf.CountDead()

	p := testParams(3)
	p.Stride = 2
	var steps []Step
	p.OnStep = func(s Step) {
		steps = append(steps, s)
		if got := buf.CountDead(); got != s.Remaining {
			t.Errorf("Step %d reports %d remaining, buffer has %d", s.Iteration, s.Remaining, got)
		}
	}
	e := newTestEngine(t, p)

	if err := e.Inpaint(buf); err != nil {
		t.Fatalf("Inpaint failed: %v", err)
	}

	if len(steps) == 0 || len(steps) > initial {
		t.Fatalf("Expected between 1 and %d steps, got %d", initial, len(steps))
	}
	prev := initial
	for _, s := range steps {
		if s.Written < 1 || s.Remaining >= prev {
			t.Errorf("Step %d did not reduce the dead count: %d -> %d", s.Iteration, prev, s.Remaining)
		}
		prev = s.Remaining
	}
	if prev != 0 {
		t.Errorf("Expected the last step to leave 0 dead pixels, got %d", prev)
	}

	stats := e.Stats()
	if stats.InitialDead != initial || stats.Filled != initial || stats.Iterations != len(steps) {
		t.Errorf("Unexpected stats %+v for %d dead pixels and %d steps", stats, initial, len(steps))
	}

	// The first patch is centred on the first dead pixel in row-major order
	if c := steps[0].Center; c.Y != 15 || c.X != 12 {
		t.Errorf("Expected the first patch at (15, 12), got (%d, %d)", c.Y, c.X)
	}
}

func TestInpaintDeterministic(t *testing.T) {
	damaged := createTexture(36, 36)
	if _, err := damage.Remove(damaged, 10, 14, 6, 6); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	run := func(parallel bool) []float64 {
		buf := damaged.Clone()
		p := testParams(3)
		p.Stride = 3
		p.ParallelChannels = parallel
		if err := newTestEngine(t, p).Inpaint(buf); err != nil {
			t.Fatalf("Inpaint failed: %v", err)
		}
		return buf.Pix
	}

	first := run(false)
	if diff := cmp.Diff(first, run(false)); diff != "" {
		t.Errorf("Two runs differ (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(first, run(true)); diff != "" {
		t.Errorf("Parallel channel fits changed the result (-sequential +parallel):\n%s", diff)
	}
}

func TestInpaintCornerPixel(t *testing.T) {
	buf := createTexture(30, 30)
	buf.Set(0, 0, models.DeadPixel)

	e := newTestEngine(t, testParams(3))
	if err := e.Inpaint(buf); err != nil {
		t.Fatalf("Inpaint failed: %v", err)
	}
	if buf.IsDeadAt(0, 0) {
		t.Error("Corner pixel is still dead")
	}
	if e.Stats().Iterations != 1 {
		t.Errorf("Expected 1 iteration, got %d", e.Stats().Iterations)
	}
}

func TestInpaintNearestAtoms(t *testing.T) {
	buf := createTexture(40, 40)
	if _, err := damage.Remove(buf, 20, 20, 5, 5); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	p := testParams(3)
	p.Stride = 3
	p.NearestAtoms = 8
	e := newTestEngine(t, p)
	if err := e.Inpaint(buf); err != nil {
		t.Fatalf("Inpaint failed: %v", err)
	}
	if buf.CountDead() != 0 {
		t.Errorf("Expected no dead pixels, got %d", buf.CountDead())
	}
}

func TestInpaintAllDeadReportsEmptyDictionary(t *testing.T) {
	buf := models.NewUniform(20, 20, models.DeadPixel)
	before := buf.Clone()

	e := newTestEngine(t, testParams(2))
	err := e.Inpaint(buf)
	if !errors.Is(err, ErrEmptyDictionary) {
		t.Fatalf("Expected ErrEmptyDictionary, got %v", err)
	}
	if diff := cmp.Diff(before.Pix, buf.Pix); diff != "" {
		t.Errorf("Buffer was written before the error (-want +got):\n%s", diff)
	}
	if e.State() != Failed {
		t.Errorf("Expected state failed, got %v", e.State())
	}
}

func TestInpaintDegenerateFit(t *testing.T) {
	buf := createTexture(30, 30)
	// Every in-bounds cell of the window around (0, 0) is dead
	if _, err := damage.Remove(buf, 0, 0, 4, 4); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	e := newTestEngine(t, testParams(3))
	if err := e.Inpaint(buf); !errors.Is(err, ErrDegenerateFit) {
		t.Fatalf("Expected ErrDegenerateFit, got %v", err)
	}
	if buf.CountDead() != 16 {
		t.Errorf("Expected the buffer untouched, %d dead pixels remain", buf.CountDead())
	}
}

func TestInpaintOutOfBoundsConfiguration(t *testing.T) {
	buf := createTexture(20, 10)
	buf.Set(5, 5, models.DeadPixel)

	e := newTestEngine(t, testParams(5))
	if err := e.Inpaint(buf); !errors.Is(err, ErrOutOfBoundsConfiguration) {
		t.Fatalf("Expected ErrOutOfBoundsConfiguration, got %v", err)
	}

	if err := newTestEngine(t, testParams(4)).CheckBounds(20, 10); err != nil {
		t.Errorf("A 9x9 patch fits a 20x10 image: %v", err)
	}
}

func TestInpaintProgressOutput(t *testing.T) {
	buf := createTexture(24, 24)
	buf.Set(12, 12, models.DeadPixel)

	var out bytes.Buffer
	p := testParams(2)
	p.Progress = TextProgress(&out)
	if err := newTestEngine(t, p).Inpaint(buf); err != nil {
		t.Fatalf("Inpaint failed: %v", err)
	}

	if !strings.Contains(out.String(), "Dictionary:") {
		t.Errorf("Expected a dictionary message, got %q", out.String())
	}
	if !strings.Contains(out.String(), "100.0% (1/1)") {
		t.Errorf("Expected a completed progress bar, got %q", out.String())
	}
}

// TestInpaintLargeRemoval removes the same rectangle as the demo
func TestInpaintLargeRemoval(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping large removal in short mode")
	}

	buf := createTexture(600, 500)
	if _, err := damage.Remove(buf, 288, 497, 190, 80); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	p := testParams(10)
	p.NearestAtoms = 40
	p.MaxIterations = 100
	p.ParallelChannels = true
	e := newTestEngine(t, p)

	if err := e.Inpaint(buf); err != nil {
		t.Fatalf("Inpaint failed: %v", err)
	}
	if buf.CountDead() != 0 {
		t.Errorf("Expected no dead pixels, got %d", buf.CountDead())
	}
	if e.Stats().Filled != 190*80 {
		t.Errorf("Expected %d filled pixels, got %d", 190*80, e.Stats().Filled)
	}
}
