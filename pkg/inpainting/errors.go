package inpainting

import "errors"

var (
	// ErrEmptyDictionary means no window satisfied the missing-pixel
	// tolerance at the configured stride and patch size. Retry with a larger
	// tolerance or a smaller stride or patch.
	ErrEmptyDictionary = errors.New("inpainting: dictionary is empty")

	// ErrDegenerateFit means a query patch had no live pixel in some channel,
	// or a fit produced an unusable prediction. The damaged region is too
	// large for the patch size.
	ErrDegenerateFit = errors.New("inpainting: degenerate fit")

	// ErrOutOfBoundsConfiguration means the patch is too large for any window
	// to fit inside the image.
	ErrOutOfBoundsConfiguration = errors.New("inpainting: patch does not fit inside the image")

	// ErrInvalidConfiguration reports a parameter outside its allowed range.
	ErrInvalidConfiguration = errors.New("inpainting: invalid configuration")
)
