package timing

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
)

const hashPrefixLen = 10

// ExplorerFunc maps a transaction hash to a block explorer URL
type ExplorerFunc func(hash string) string

// Milliseconds rounds d to whole milliseconds
func Milliseconds(d time.Duration) int64 {
	return int64(math.Round(float64(d) / float64(time.Millisecond)))
}

// TruncateHash shortens a hash to its first ten characters and an ellipsis
func TruncateHash(hash string) string {
	if hash == "" {
		return "-"
	}
	if len(hash) <= hashPrefixLen {
		return hash
	}
	return hash[:hashPrefixLen] + "..."
}

// RenderSummary writes the performance summary block
func RenderSummary(w io.Writer, s Summary) error {
	_, err := fmt.Fprintf(w, "Total Tests: %d\nAverage Duration: %dms\nSuccessful: %d\nFailed: %d\n",
		s.Total, Milliseconds(s.Average), s.Successful, s.Failed)
	return err
}

// RenderTable writes the results table, newest first. The index column counts
// down so the oldest run is #1.
func RenderTable(w io.Writer, samples []Sample, explorer ExplorerFunc) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSTATUS\tDURATION\tTX HASH\tEXPLORER\tSPONSORED\tTIMESTAMP")

	for i, s := range samples {
		link := "-"
		if s.TxHash != "" && explorer != nil {
			link = explorer(s.TxHash)
		}
		sponsored := "No"
		if s.Sponsored {
			sponsored = "Yes"
		}

		fmt.Fprintf(tw, "%d\t%s\t%dms\t%s\t%s\t%s\t%s\n",
			len(samples)-i,
			statusLabel(s.Status),
			Milliseconds(s.Duration),
			TruncateHash(s.TxHash),
			link,
			sponsored,
			s.StartTime.Format(time.TimeOnly),
		)
	}
	return tw.Flush()
}

// RenderErrors lists the error messages of failed samples, newest first
func RenderErrors(w io.Writer, samples []Sample) error {
	for i, s := range samples {
		if s.Status != StatusError {
			continue
		}
		if _, err := fmt.Fprintf(w, "#%d: %s\n", len(samples)-i, s.Error); err != nil {
			return err
		}
	}
	return nil
}

func statusLabel(status Status) string {
	switch status {
	case StatusSuccess:
		return color.GreenString(string(status))
	case StatusError:
		return color.RedString(string(status))
	default:
		return color.YellowString(string(status))
	}
}
