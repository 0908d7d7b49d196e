// Package report renders sweep results: a console summary, CSV (optionally
// zstd-compressed) and a SQLite results store.
package report

import (
	"fmt"
	"io"

	"github.com/latticesim/contact-sim/sim/sweep"
)

// PrintSummary writes one line per grid point.
func PrintSummary(w io.Writer, results []sweep.PointResult) error {
	for _, r := range results {
		line := fmt.Sprintf("Lambda: %g, Alpha: %g, Success: %.4f, Active: %.4f", r.Lambda, r.Alpha, r.ExtinctionFraction, r.MeanActive)
		if r.Failed > 0 {
			line += fmt.Sprintf(" (failed %d/%d)", r.Failed, r.Replicas)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
