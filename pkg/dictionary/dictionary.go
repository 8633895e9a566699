// Package dictionary builds the reference atom set used to reconstruct
// damaged patches.
package dictionary

import (
	"fmt"
	"image"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/kdtree"

	"patchinpaint/internal/models"
	"patchinpaint/pkg/patch"
)

// Dictionary is an ordered, immutable collection of atoms. Atom k was cut
// from the image at Center(k). Once built, a Dictionary is safe for
// concurrent reads.
type Dictionary struct {
	halfSize  int
	atoms     []models.Patch
	centers   []image.Point
	deadCount []int

	// channels[c] has one row per patch position and one column per atom
	channels [models.Channels]*mat.Dense

	tree *kdtree.Tree
}

// Build scans the image on a regular grid and collects every in-bounds
// window with at most maxMissing dead pixels as an atom.
//
// Candidate centres are rows 0, stride, 2*stride, ... and the same for
// columns. Only windows that fit entirely inside the image are considered.
// Damage is measured on channel 0, since dead pixels are dead in every
// channel at once.
//
// Atoms accepted with dead cells (maxMissing > 0) have those cells replaced,
// per channel, by the mean of the atom's live cells. Windows without a single
// live cell are never accepted, whatever maxMissing is.
//
// Parameters:
//   - buf: the image to sample
//   - stride: distance between candidate centres, > 0
//   - h: patch half-size, > 0
//   - maxMissing: tolerated dead pixels per atom, 0 for intact atoms only
//
// Returns:
//   - the dictionary, possibly empty, or an error for invalid arguments
func Build(buf *models.PixelBuffer, stride, h, maxMissing int) (*Dictionary, error) {
	if stride <= 0 {
		return nil, fmt.Errorf("stride must be positive, got %d", stride)
	}
	if h <= 0 {
		return nil, fmt.Errorf("patch half-size must be positive, got %d", h)
	}
	if maxMissing < 0 {
		return nil, fmt.Errorf("max missing pixels must be non-negative, got %d", maxMissing)
	}

	d := &Dictionary{halfSize: h}
	ext := patch.NewExtractor(buf)

	for i := 0; i < buf.Height; i += stride {
		for j := 0; j < buf.Width; j += stride {
			if !ext.InBounds(i, j, h) {
				continue
			}
			p := ext.Extract(i, j, h)
			dead := p.CountDead(0)
			// A fully dead window has nothing to impute from
			if dead > maxMissing || dead == p.Positions() {
				continue
			}
			if dead > 0 {
				fillDead(p)
			}
			d.atoms = append(d.atoms, p)
			d.centers = append(d.centers, image.Point{X: j, Y: i})
			d.deadCount = append(d.deadCount, dead)
		}
	}

	if len(d.atoms) > 0 {
		d.stack()
		pts := make(atomCenters, len(d.centers))
		for k, c := range d.centers {
			pts[k] = atomCenter{Row: float64(c.Y), Col: float64(c.X), Index: k}
		}
		d.tree = kdtree.New(pts, false)
	}

	return d, nil
}

// fillDead replaces the dead cells of p with the mean of its live cells, per channel.
func fillDead(p models.Patch) {
	for c := 0; c < models.Channels; c++ {
		sum, n := 0.0, 0
		for k := 0; k < p.Positions(); k++ {
			if v := p.Pix[k*models.Channels+c]; models.IsLive(v) {
				sum += v
				n++
			}
		}
		if n == 0 {
			continue
		}
		mean := sum / float64(n)
		for k := 0; k < p.Positions(); k++ {
			if !models.IsLive(p.Pix[k*models.Channels+c]) {
				p.Pix[k*models.Channels+c] = mean
			}
		}
	}
}

// stack lays the atoms out as one positions x atoms matrix per channel.
func (d *Dictionary) stack() {
	positions := d.atoms[0].Positions()
	for c := 0; c < models.Channels; c++ {
		m := mat.NewDense(positions, len(d.atoms), nil)
		for k, a := range d.atoms {
			m.SetCol(k, a.Channel(c))
		}
		d.channels[c] = m
	}
}

// Len returns the number of atoms.
func (d *Dictionary) Len() int { return len(d.atoms) }

// HalfSize returns the half-size of every atom.
func (d *Dictionary) HalfSize() int { return d.halfSize }

// Atom returns atom k. The returned patch shares storage with the
// dictionary and must not be modified.
func (d *Dictionary) Atom(k int) models.Patch { return d.atoms[k] }

// Center returns the image coordinate atom k was extracted at.
func (d *Dictionary) Center(k int) image.Point { return d.centers[k] }

// DeadCount returns the number of dead pixels atom k had when it was accepted.
func (d *Dictionary) DeadCount(k int) int { return d.deadCount[k] }

// Channel returns the positions x atoms matrix for channel c. Row r holds the
// value of every atom at patch position r. The matrix must not be modified.
func (d *Dictionary) Channel(c int) *mat.Dense { return d.channels[c] }

// All returns every atom index in order.
func (d *Dictionary) All() []int {
	all := make([]int, d.Len())
	for k := range all {
		all[k] = k
	}
	return all
}

// Nearest returns the indices of the n atoms whose centres are closest to
// (i, j), in ascending index order. If n <= 0 or n >= Len, every index is
// returned.
func (d *Dictionary) Nearest(i, j, n int) []int {
	if n <= 0 || n >= d.Len() {
		return d.All()
	}

	keeper := kdtree.NewNKeeper(n)
	d.tree.NearestSet(keeper, atomCenter{Row: float64(i), Col: float64(j)})

	indices := make([]int, 0, n)
	for _, item := range keeper.Heap {
		if item.Comparable == nil {
			continue
		}
		indices = append(indices, item.Comparable.(atomCenter).Index)
	}
	sort.Ints(indices)
	return indices
}

// atomCenter is an atom position that satisfies kdtree.Comparable
type atomCenter struct {
	Row, Col float64
	Index    int
}

func (p atomCenter) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(atomCenter)
	switch d {
	case 0:
		return p.Row - q.Row
	case 1:
		return p.Col - q.Col
	default:
		panic("illegal dimension")
	}
}

func (p atomCenter) Dims() int { return 2 }

// Distance returns the squared Euclidean distance.
func (p atomCenter) Distance(c kdtree.Comparable) float64 {
	q := c.(atomCenter)
	dr := p.Row - q.Row
	dc := p.Col - q.Col
	return dr*dr + dc*dc
}

type atomCenters []atomCenter

func (p atomCenters) Index(i int) kdtree.Comparable         { return p[i] }
func (p atomCenters) Len() int                              { return len(p) }
func (p atomCenters) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot must not depend on random state: Nearest resolves distance ties by
// tree shape.
func (p atomCenters) Pivot(d kdtree.Dim) int {
	plane := centerPlane{atomCenters: p, Dim: d}
	return kdtree.Partition(plane, kdtree.MedianOfMedians(plane))
}

// centerPlane implements sort.Interface and kdtree.SortSlicer for atomCenters
type centerPlane struct {
	atomCenters
	kdtree.Dim
}

func (p centerPlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.atomCenters[i].Row < p.atomCenters[j].Row
	case 1:
		return p.atomCenters[i].Col < p.atomCenters[j].Col
	default:
		panic("illegal dimension")
	}
}

func (p centerPlane) Slice(start, end int) kdtree.SortSlicer {
	return centerPlane{atomCenters: p.atomCenters[start:end], Dim: p.Dim}
}

func (p centerPlane) Swap(i, j int) {
	p.atomCenters[i], p.atomCenters[j] = p.atomCenters[j], p.atomCenters[i]
}
