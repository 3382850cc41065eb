// Package reconcile keeps the cross-run intersection of fence advisories for
// one kernel.
//
// A fence advisory is trusted only if it held for every input tried so far.
// Each run is reduced to a RunResult and folded into the kernel's Session;
// the Session's confirmed set only ever shrinks.
package reconcile

import (
	"maps"
	"slices"

	"github.com/roach88/fencecheck/internal/advisory"
)

// RunResult is the set of fences observed in one run, with the advisory
// last printed for each.
type RunResult struct {
	advs map[int64]advisory.Advisory
}

// NewRunResult builds a RunResult from one run's advisories. When a fence is
// reported more than once in the same run, the last line wins.
func NewRunResult(advs []advisory.Advisory) RunResult {
	m := make(map[int64]advisory.Advisory, len(advs))
	for _, a := range advs {
		m[a.Fence] = a
	}
	return RunResult{advs: m}
}

// Observed returns the observed fences in ascending order.
func (r RunResult) Observed() []int64 {
	return slices.Sorted(maps.Keys(r.advs))
}

// Len returns the number of distinct fences observed.
func (r RunResult) Len() int {
	return len(r.advs)
}

// Has reports whether the run observed fence.
func (r RunResult) Has(fence int64) bool {
	_, ok := r.advs[fence]
	return ok
}

// FoldOutcome describes what a single Fold changed.
type FoldOutcome struct {
	// Initial is true for the first run folded into the session.
	Initial bool

	// Dropped lists, ascending, the fences confirmed before this fold that
	// the folded run did not observe.
	Dropped []int64

	// Confirmed is the size of the confirmed set after the fold.
	Confirmed int
}

// Session tracks the confirmed fences of one kernel.
// A Session is not safe for concurrent use; runs are folded one at a time.
type Session struct {
	kernel    string
	runs      int
	confirmed map[int64]advisory.Advisory
}

// NewSession returns an empty session for kernel.
func NewSession(kernel string) *Session {
	return &Session{
		kernel:    kernel,
		confirmed: make(map[int64]advisory.Advisory),
	}
}

// Kernel returns the kernel selector the session belongs to.
func (s *Session) Kernel() string {
	return s.kernel
}

// Runs returns the number of runs folded so far.
func (s *Session) Runs() int {
	return s.runs
}

// Fold intersects the confirmed set with run.
//
// The first fold seeds the confirmed set with every observed fence. Later
// folds drop fences the run did not observe and overwrite the text of the
// survivors with the run's text. Dropped fences lose their text at once.
func (s *Session) Fold(run RunResult) FoldOutcome {
	s.runs++

	if s.runs == 1 {
		maps.Copy(s.confirmed, run.advs)
		return FoldOutcome{Initial: true, Confirmed: len(s.confirmed)}
	}

	var dropped []int64
	for fence := range s.confirmed {
		a, ok := run.advs[fence]
		if !ok {
			dropped = append(dropped, fence)
			continue
		}
		s.confirmed[fence] = a
	}
	for _, fence := range dropped {
		delete(s.confirmed, fence)
	}
	slices.Sort(dropped)

	return FoldOutcome{Dropped: dropped, Confirmed: len(s.confirmed)}
}

// Confirmed returns the confirmed fences in ascending order.
func (s *Session) Confirmed() []int64 {
	return slices.Sorted(maps.Keys(s.confirmed))
}

// Text returns the advisory text retained for a confirmed fence.
func (s *Session) Text(fence int64) (string, bool) {
	a, ok := s.confirmed[fence]
	return a.Text, ok
}

// Advisory returns the advisory retained for a confirmed fence.
func (s *Session) Advisory(fence int64) (advisory.Advisory, bool) {
	a, ok := s.confirmed[fence]
	return a, ok
}

// Intersect returns, ascending, the fences observed by every run.
// It does not depend on the order of runs and returns nil for no runs.
func Intersect(runs ...RunResult) []int64 {
	if len(runs) == 0 {
		return nil
	}
	var out []int64
	for fence := range runs[0].advs {
		keep := true
		for _, r := range runs[1:] {
			if !r.Has(fence) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, fence)
		}
	}
	slices.Sort(out)
	return out
}
