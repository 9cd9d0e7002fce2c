package analysis

import (
	"errors"
	"fmt"
	"strings"
)

var errUnavailable = errors.New("scoring artifacts unavailable")

// InputMissingError means no usable sample data was supplied
type InputMissingError struct {
	// Index and Field locate a malformed record; Index is -1 when the whole
	// sequence is absent.
	Index int
	Field string
}

func (e *InputMissingError) Error() string {
	if e.Index < 0 {
		return "no sensor data provided"
	}
	return fmt.Sprintf("sample %d: missing field %s", e.Index, e.Field)
}

// InsufficientDataError means the input is shorter than one window
type InsufficientDataError struct {
	Got  int
	Want int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data to form a window: got %d samples, need %d", e.Got, e.Want)
}

// SchemaMismatchError means the assembled features and the normalization
// schema disagree, which indicates artifact/code version drift.
type SchemaMismatchError struct {
	Missing    []string
	Unexpected []string
	Detail     string
}

func (e *SchemaMismatchError) Error() string {
	var b strings.Builder
	b.WriteString("feature schema mismatch")
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, "; missing %v", e.Missing)
	}
	if len(e.Unexpected) > 0 {
		fmt.Fprintf(&b, "; unexpected %v", e.Unexpected)
	}
	return b.String()
}

// Stages reported by ScoringError
const (
	StageLoad      = "load"
	StageFeatures  = "features"
	StageNormalize = "normalize"
	StageClassify  = "classify"
)

// ScoringError wraps a failure of the normalizer or classifier
type ScoringError struct {
	Stage string
	Err   error
}

func (e *ScoringError) Error() string {
	return fmt.Sprintf("scoring failed at %s: %v", e.Stage, e.Err)
}

func (e *ScoringError) Unwrap() error {
	return e.Err
}
