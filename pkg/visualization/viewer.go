package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"path/filepath"

	"patchinpaint/internal/models"
	"patchinpaint/pkg/imageio"
	"patchinpaint/pkg/inpainting"
)

// Viewer renders views of a pixel buffer. It reads the buffer each time a
// view is requested, so views follow the buffer as it is repaired.
type Viewer struct {
	buf *models.PixelBuffer
}

// NewViewer creates a viewer over buf
func NewViewer(buf *models.PixelBuffer) *Viewer {
	return &Viewer{buf: buf}
}

// Image renders the buffer in RGB, dead pixels black
func (v *Viewer) Image() image.Image {
	return imageio.ToImage(v.buf)
}

// MaskImage renders dead pixels white and live pixels black
func (v *Viewer) MaskImage() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, v.buf.Width, v.buf.Height))
	for k, dead := range v.buf.DeadMask() {
		if dead {
			img.Pix[k] = 255
		}
	}
	return img
}

// ExtractRegion copies the height x width region with top-left corner
// (row, col) into a new buffer
func (v *Viewer) ExtractRegion(row, col, height, width int) (*models.PixelBuffer, error) {
	if row < 0 || col < 0 {
		return nil, fmt.Errorf("start coordinates must be non-negative")
	}
	if height <= 0 || width <= 0 {
		return nil, fmt.Errorf("size dimensions must be positive")
	}
	if row+height > v.buf.Height || col+width > v.buf.Width {
		return nil, fmt.Errorf("region extends beyond image boundaries")
	}

	region := models.NewPixelBuffer(width, height)
	for i := 0; i < height; i++ {
		src := ((row+i)*v.buf.Width + col) * models.Channels
		copy(region.Pix[i*width*models.Channels:(i+1)*width*models.Channels], v.buf.Pix[src:src+width*models.Channels])
	}
	return region, nil
}

// SideBySide places the given buffers left to right, separated by a
// gap-pixel white column. All buffers must share the same height.
func SideBySide(gap int, bufs ...*models.PixelBuffer) (image.Image, error) {
	if len(bufs) == 0 {
		return nil, fmt.Errorf("nothing to compose")
	}
	height := bufs[0].Height
	width := 0
	for i, b := range bufs {
		if b.Height != height {
			return nil, fmt.Errorf("buffer %d has height %d, expected %d", i, b.Height, height)
		}
		width += b.Width
	}
	width += gap * (len(bufs) - 1)

	out := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	x := 0
	for _, b := range bufs {
		r := image.Rect(x, 0, x+b.Width, height)
		draw.Draw(out, r, imageio.ToImage(b), image.Point{}, draw.Src)
		x += b.Width + gap
	}
	return out, nil
}

// SaveComparison writes before and after next to each other
func SaveComparison(before, after *models.PixelBuffer, filename string) error {
	img, err := SideBySide(8, before, after)
	if err != nil {
		return err
	}
	return imageio.SaveImage(img, filename)
}

// SaveMask writes the dead mask of buf, dead pixels white
func SaveMask(buf *models.PixelBuffer, filename string) error {
	return imageio.SaveImage(NewViewer(buf).MaskImage(), filename)
}

// SaveRegionComparison crops the same region out of before and after and
// writes the crops next to each other. The region is clipped to the images.
func SaveRegionComparison(before, after *models.PixelBuffer, row, col, height, width int, filename string) error {
	if height < 0 || row+height > before.Height {
		height = before.Height - row
	}
	if width < 0 || col+width > before.Width {
		width = before.Width - col
	}

	a, err := NewViewer(before).ExtractRegion(row, col, height, width)
	if err != nil {
		return err
	}
	b, err := NewViewer(after).ExtractRegion(row, col, height, width)
	if err != nil {
		return err
	}
	return SaveComparison(a, b, filename)
}

// FrameRecorder saves the buffer every N fill steps, producing a sequence
// of images that shows the fill progressing.
type FrameRecorder struct {
	viewer    *Viewer
	outputDir string
	every     int

	// Saved counts written frames
	Saved int

	// Err holds the first save error; recording stops after it
	Err error
}

// NewFrameRecorder records frames of buf into outputDir every `every` steps
func NewFrameRecorder(buf *models.PixelBuffer, outputDir string, every int) *FrameRecorder {
	if every <= 0 {
		every = 1
	}
	return &FrameRecorder{viewer: NewViewer(buf), outputDir: outputDir, every: every}
}

// OnStep is an inpainting step hook. The final step is always saved.
func (f *FrameRecorder) OnStep(step inpainting.Step) {
	if f.Err != nil {
		return
	}
	if step.Iteration%f.every != 0 && step.Remaining > 0 {
		return
	}
	f.Err = f.SaveFrame(step.Iteration)
}

// SaveFrame writes the current buffer as frame_<index>.png
func (f *FrameRecorder) SaveFrame(index int) error {
	filename := filepath.Join(f.outputDir, fmt.Sprintf("frame_%05d.png", index))
	if err := imageio.SaveImage(f.viewer.Image(), filename); err != nil {
		return err
	}
	f.Saved++
	return nil
}
