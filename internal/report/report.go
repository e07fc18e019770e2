// Package report prints sample sets, QUBO tables and check results for the
// command-line tools.
package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/lanl/qanneal/qubo"
	"github.com/lanl/qanneal/sapi"
)

func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
}

// SampleSet writes one row per record: the value of every variable, the
// energy, the occurrence count and the chain-break fraction.  At most limit
// rows are written; limit <= 0 writes them all.
func SampleSet(w io.Writer, ss *sapi.SampleSet, limit int) error {
	tw := newTabWriter(w)
	fmt.Fprintf(tw, "#\t%s\tenergy\tnum_oc\tchain_b\t\n", strings.Join(ss.Variables, "\t"))
	for i, r := range ss.Records {
		if limit > 0 && i >= limit {
			break
		}
		vals := make([]string, len(ss.Variables))
		for j, v := range ss.Variables {
			vals[j] = fmt.Sprint(r.Sample[v])
		}
		fmt.Fprintf(tw, "%d\t%s\t%g\t%d\t%.3f\t\n", i, strings.Join(vals, "\t"), r.Energy, r.NumOccurrences, r.ChainBreakFraction)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	shown := len(ss.Records)
	if limit > 0 && limit < shown {
		shown = limit
	}
	_, err := fmt.Fprintf(w, "['%s', %d rows of %d, %d variables]\n", ss.Vartype, shown, len(ss.Records), len(ss.Variables))
	return err
}

// Table writes a QUBO table under a title, one entry per line in key order.
func Table(w io.Writer, title string, t qubo.Table) error {
	if _, err := fmt.Fprintf(w, "%s (%d entries)\n", title, len(t)); err != nil {
		return err
	}
	return t.Format(w)
}

// Mismatches writes each disagreement between two tables.
func Mismatches(w io.Writer, ms []qubo.Mismatch) error {
	for _, m := range ms {
		if _, err := fmt.Fprintf(w, "mismatch %s\n", m); err != nil {
			return err
		}
	}
	return nil
}

// Check writes a named boolean result.
func Check(w io.Writer, name string, ok bool) error {
	_, err := fmt.Fprintf(w, "%s: %t\n", name, ok)
	return err
}

// Timing writes a named duration rounded to the microsecond.
func Timing(w io.Writer, name string, d time.Duration) error {
	_, err := fmt.Fprintf(w, "%s: %s\n", name, d.Round(time.Microsecond))
	return err
}
