package advisory

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Structural markers a line must carry to be treated as an advisory.
const (
	MarkerFence = "Fence@"
	MarkerEpoch = "Epoch"
	MarkerInfo  = "Info"
	MarkerType  = "Type"
)

// Markers lists every marker checked by Classify, in output order.
var Markers = []string{MarkerFence, MarkerEpoch, MarkerInfo, MarkerType}

const (
	fieldDelimiter = "|"
	valueDelimiter = ":"

	fenceField = 1
	kindField  = 3
)

// Line is the result of classifying one diagnostic line.
// Only Advisory and NotAdvisory implement it.
type Line interface {
	lineMarker()
}

// Advisory is a parsed fence advisory. Immutable once returned.
type Advisory struct {
	// Fence is the epoch the tool assigned to the fence occurrence.
	Fence int64

	// Kind is the tool's classification of the advisory, as printed.
	Kind string

	// Text is the original line with trailing whitespace removed.
	Text string
}

// NotAdvisory is any line missing at least one structural marker.
type NotAdvisory struct {
	Text string
}

func (Advisory) lineMarker()    {}
func (NotAdvisory) lineMarker() {}

// FormatError reports a line that carries every advisory marker but whose
// fields cannot be decoded.
type FormatError struct {
	Line   string
	Field  string
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed advisory %s: %s: %v (line %q)", e.Field, e.Reason, e.Err, e.Line)
	}
	return fmt.Sprintf("malformed advisory %s: %s (line %q)", e.Field, e.Reason, e.Line)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// IsFormatError reports whether err is, or wraps, a *FormatError.
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// IsAdvisory reports whether the line carries all structural markers.
func IsAdvisory(line string) bool {
	for _, m := range Markers {
		if !strings.Contains(line, m) {
			return false
		}
	}
	return true
}

// Classify decodes one line of tool output.
func Classify(line string) (Line, error) {
	text := strings.TrimRightFunc(line, unicode.IsSpace)
	if !IsAdvisory(text) {
		return NotAdvisory{Text: text}, nil
	}

	fields := strings.Split(text, fieldDelimiter)
	if len(fields) <= kindField {
		return nil, &FormatError{
			Line:   text,
			Field:  "fields",
			Reason: fmt.Sprintf("want at least %d %q-delimited fields, got %d", kindField+1, fieldDelimiter, len(fields)),
		}
	}

	rawFence, err := fieldValue(text, "epoch", fields[fenceField])
	if err != nil {
		return nil, err
	}
	fence, err := strconv.ParseInt(rawFence, 10, 64)
	if err != nil {
		return nil, &FormatError{Line: text, Field: "epoch", Reason: "not an integer", Err: err}
	}

	kind, err := fieldValue(text, "type", fields[kindField])
	if err != nil {
		return nil, err
	}

	return Advisory{Fence: fence, Kind: kind, Text: text}, nil
}

// fieldValue returns the trimmed value after the first ':' in field.
func fieldValue(line, name, field string) (string, error) {
	_, value, ok := strings.Cut(field, valueDelimiter)
	if !ok {
		return "", &FormatError{Line: line, Field: name, Reason: fmt.Sprintf("missing %q delimiter", valueDelimiter)}
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", &FormatError{Line: line, Field: name, Reason: "empty value"}
	}
	return value, nil
}

// ParseRun classifies every line of one run and returns the advisories in
// output order. The first malformed advisory aborts the parse.
func ParseRun(lines []string) ([]Advisory, error) {
	var out []Advisory
	for i, text := range lines {
		line, err := Classify(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		if a, ok := line.(Advisory); ok {
			out = append(out, a)
		}
	}
	return out, nil
}
