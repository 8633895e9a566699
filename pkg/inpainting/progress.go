package inpainting

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// ProgressCallback is a function that reports progress during inpainting.
// completed counts filled pixels out of total dead pixels at the start of the
// run. A call with total == 0 carries an informational message only.
type ProgressCallback func(completed, total int, message string)

// TextProgress returns a ProgressCallback that draws a progress bar on w,
// rewriting the current line on every update.
//
// Example usage:
//
//	params.Progress = inpainting.TextProgress(os.Stdout)
func TextProgress(w io.Writer) ProgressCallback {
	start := time.Now()
	return func(completed, total int, message string) {
		if total == 0 {
			if message != "" {
				fmt.Fprintln(w, message)
			}
			return
		}

		percentage := float64(completed) / float64(total) * 100

		// Build the bar
		width := 40
		numBars := int(percentage / 100 * float64(width))
		var bar strings.Builder
		bar.WriteString("[")
		for i := 0; i < width; i++ {
			switch {
			case i < numBars:
				bar.WriteString("█")
			case i == numBars:
				bar.WriteString("▓")
			default:
				bar.WriteString("░")
			}
		}
		bar.WriteString("]")

		statusInfo := ""
		if message != "" {
			statusInfo = " | " + message
		}

		if completed > 0 {
			elapsed := time.Since(start)
			remaining := 0.0
			if completed < total {
				remaining = elapsed.Seconds() / float64(completed) * float64(total-completed)
			}
			fmt.Fprintf(w, "\r%s %.1f%% (%d/%d) [%.1fs elapsed | %s remaining%s]",
				bar.String(), percentage, completed, total, elapsed.Seconds(), formatSeconds(remaining), statusInfo)
		} else {
			fmt.Fprintf(w, "\r%s %.1f%% (%d/%d)%s", bar.String(), percentage, completed, total, statusInfo)
		}

		if completed >= total {
			fmt.Fprintln(w)
		}
	}
}

// formatSeconds renders a duration in seconds, minutes or hours.
func formatSeconds(s float64) string {
	switch {
	case s < 60:
		return fmt.Sprintf("%.1fs", s)
	case s < 3600:
		return fmt.Sprintf("%.1fm", s/60)
	default:
		return fmt.Sprintf("%.1fh", s/3600)
	}
}
