// Package advisory classifies diagnostic lines written by the fence
// instrumentation tool.
//
// The tool interleaves its advisories with whatever the target program
// prints on stdout. An advisory line carries four structural markers and at
// least four pipe-delimited fields:
//
//	Fence@0x1a0 | Epoch: 7 | Info: release scope can be narrowed | Type: 2
//
// The second field holds the fence identifier (the "epoch") and the fourth
// field holds the advisory kind, each as a label:value pair.
//
// # Classification
//
// Classify returns a closed variant: either Advisory or NotAdvisory.
// Callers switch on the concrete type:
//
//	line, err := advisory.Classify(text)
//	if err != nil {
//	    return err // tool output format changed
//	}
//	switch l := line.(type) {
//	case advisory.Advisory:
//	    use(l.Fence, l.Kind)
//	case advisory.NotAdvisory:
//	    // program output, ignore
//	}
//
// A line that carries every marker but cannot be decoded is a *FormatError.
// It is never silently skipped: a partially parsed run would make any
// cross-run intersection unsound.
package advisory
