package report

import (
	"fmt"
	"io"
)

// toCanonicalMap converts a Report for canonical JSON serialization.
func (r Report) toCanonicalMap() map[string]any {
	advisories := make([]any, len(r.Advisories))
	for i, a := range r.Advisories {
		advisories[i] = map[string]any{
			"fence": a.Fence,
			"kind":  a.Kind,
			"text":  a.Text,
		}
	}

	runs := make([]any, len(r.Runs))
	for i, run := range r.Runs {
		runs[i] = map[string]any{
			"input":       run.Input,
			"description": run.Description,
			"observed":    run.Observed,
			"confirmed":   run.Confirmed,
			"exit_code":   run.ExitCode,
			"duration_ms": run.DurationMS,
		}
	}

	drops := make([]any, len(r.Drops))
	for i, d := range r.Drops {
		fences := make([]any, len(d.Fences))
		for j, f := range d.Fences {
			fences[j] = f
		}
		drops[i] = map[string]any{
			"input":  d.Input,
			"fences": fences,
		}
	}

	return map[string]any{
		"kernel":     r.Kernel,
		"session_id": r.SessionID,
		"inputs":     r.Inputs,
		"advisories": advisories,
		"runs":       runs,
		"dropped":    drops,
	}
}

// MarshalJSON encodes reports as a single canonical JSON document of the
// form {"kernels":[...]}.
func MarshalJSON(reports []Report) ([]byte, error) {
	kernels := make([]any, len(reports))
	for i, r := range reports {
		kernels[i] = r.toCanonicalMap()
	}
	data, err := marshalCanonical(map[string]any{"kernels": kernels})
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return data, nil
}

// WriteJSON writes MarshalJSON's output followed by a newline.
func WriteJSON(w io.Writer, reports []Report) error {
	data, err := MarshalJSON(reports)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
