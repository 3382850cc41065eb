// Package report renders the confirmed advisories of a kernel session.
//
// Advisories are always emitted in ascending fence order so that reports of
// the same pass compare equal byte for byte.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/roach88/fencecheck/internal/ledger"
	"github.com/roach88/fencecheck/internal/reconcile"
)

// Advisory is one confirmed fence advisory.
type Advisory struct {
	Fence int64
	Kind  string
	Text  string
}

// Run is one entry of a session's audit trail.
type Run struct {
	Input       int
	Description string
	Observed    int
	Confirmed   int
	ExitCode    int
	DurationMS  int64
}

// Drop lists the fences one input removed from the confirmed set.
type Drop struct {
	Input  int
	Fences []int64
}

// Report is the final result of one kernel session.
type Report struct {
	Kernel     string
	SessionID  string
	Inputs     int
	Advisories []Advisory
	Runs       []Run
	Drops      []Drop
}

// FromSession builds the report of a finished session. Only confirmed fences
// are included.
func FromSession(id string, s *reconcile.Session) Report {
	r := Report{
		Kernel:    s.Kernel(),
		SessionID: id,
		Inputs:    s.Runs(),
	}
	for _, fence := range s.Confirmed() {
		a, _ := s.Advisory(fence)
		r.Advisories = append(r.Advisories, Advisory{Fence: fence, Kind: a.Kind, Text: a.Text})
	}
	return r
}

// AttachTrail copies a session's ledger trail into the report. Drops are
// grouped per input.
func (r *Report) AttachTrail(runs []ledger.RunRecord, drops []ledger.DropRecord) {
	r.Runs = r.Runs[:0]
	for _, rec := range runs {
		r.Runs = append(r.Runs, Run{
			Input:       rec.InputIndex,
			Description: rec.Input,
			Observed:    rec.Observed,
			Confirmed:   rec.Confirmed,
			ExitCode:    rec.ExitCode,
			DurationMS:  rec.Duration.Milliseconds(),
		})
	}

	r.Drops = r.Drops[:0]
	for _, rec := range drops {
		if n := len(r.Drops); n > 0 && r.Drops[n-1].Input == rec.InputIndex {
			r.Drops[n-1].Fences = append(r.Drops[n-1].Fences, rec.Fence)
			continue
		}
		r.Drops = append(r.Drops, Drop{Input: rec.InputIndex, Fences: []int64{rec.Fence}})
	}
}

// TextOptions controls WriteText.
type TextOptions struct {
	// Trail adds one line per run after the advisories.
	Trail bool
}

// WriteText writes the kernel header followed by each confirmed advisory.
func WriteText(w io.Writer, r Report, opts TextOptions) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Suggestions after iterating over inputs for %s kernel\n", r.Kernel)
	for _, a := range r.Advisories {
		b.WriteString(a.Text)
		b.WriteByte('\n')
	}

	if opts.Trail {
		dropped := make(map[int][]int64, len(r.Drops))
		for _, d := range r.Drops {
			dropped[d.Input] = d.Fences
		}
		for _, run := range r.Runs {
			fmt.Fprintf(&b, "  run %s: observed %d, confirmed %d", run.Description, run.Observed, run.Confirmed)
			if run.ExitCode != 0 {
				fmt.Fprintf(&b, ", exit %d", run.ExitCode)
			}
			if fences := dropped[run.Input]; len(fences) > 0 {
				fmt.Fprintf(&b, ", dropped %s", FenceSet(fences))
			}
			b.WriteByte('\n')
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// FenceSet formats fences as {1, 4}.
func FenceSet(fences []int64) string {
	parts := make([]string, len(fences))
	for i, f := range fences {
		parts[i] = fmt.Sprintf("%d", f)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// DropMessage is the diagnostic printed when an input shrinks the confirmed
// set.
func DropMessage(kernel string, input int, fences []int64) string {
	return fmt.Sprintf("Removing %s fence IDs from over-synchronized list (kernel %s, input %d)",
		FenceSet(fences), kernel, input)
}
