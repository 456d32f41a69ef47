package model

import (
	"errors"
	"fmt"
)

// ErrDegenerateTrainingData is returned when the training set is empty or
// contains a single class. The class-weight formula divides by the class
// counts, which is undefined in both cases.
var ErrDegenerateTrainingData = errors.New("degenerate training data: both classes must be present")

// ErrNotTrained is returned by prediction on an unfitted classifier.
var ErrNotTrained = errors.New("model not trained")

// ParseError reports an unparseable date field in a flight record.
type ParseError struct {
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ShapeMismatchError reports a feature row whose column count does not match
// the fitted model. This is an integration error, never retried.
type ShapeMismatchError struct {
	Want int
	Got  int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("feature vector has %d columns, model expects %d", e.Got, e.Want)
}

// ValidationError reports an out-of-range or malformed request field. The
// HTTP layer translates it to a client error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}
