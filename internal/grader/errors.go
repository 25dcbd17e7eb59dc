package grader

import (
	"errors"

	"github.com/Brownie44l1/hwr-api/internal/scoring"
)

var (
	// ErrEmptyCanvas means the content gate rejected the canvas; the
	// classifier was not called.
	ErrEmptyCanvas = errors.New("canvas has no meaningful stroke")
	// ErrClassifierUnavailable means no usable model is loaded.
	ErrClassifierUnavailable = errors.New("classifier unavailable")
	// ErrInferenceFailure covers classifier errors and malformed output.
	ErrInferenceFailure = errors.New("inference failed")
	ErrUnknownLabel     = scoring.ErrUnknownLabel
)
