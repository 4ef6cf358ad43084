package model

import "errors"

var (
	// ErrInsufficientHistory means fewer bars than a component's minimum.
	ErrInsufficientHistory = errors.New("insufficient history")
	// ErrUndefinedMetric means a required value is still in warm-up or had a zero denominator.
	ErrUndefinedMetric = errors.New("undefined metric")
	// ErrProviderFailure means the history fetch failed.
	ErrProviderFailure = errors.New("provider failure")
	// ErrFatalInput means the run cannot proceed at all (e.g. no universe).
	ErrFatalInput = errors.New("fatal input failure")
)
