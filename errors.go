package overlay

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors. Every error returned by this package wraps exactly one
// of them.
var (
	// ErrDisplayOpen is returned when the display cannot be opened.
	ErrDisplayOpen = errors.New("overlay: display open failed")

	// ErrGeometryQuery is returned when the display size cannot be queried
	// or is unusable.
	ErrGeometryQuery = errors.New("overlay: display geometry query failed")

	// ErrResourceCreate is returned when a compositor resource cannot be
	// created or filled.
	ErrResourceCreate = errors.New("overlay: resource create failed")

	// ErrAllocation is returned when a pixel buffer cannot be allocated.
	ErrAllocation = errors.New("overlay: allocation failed")

	// ErrDecode is returned when the vignette image cannot be decoded.
	ErrDecode = errors.New("overlay: image decode failed")

	// ErrDimensionMismatch is returned when the vignette image size differs
	// from the display size.
	ErrDimensionMismatch = errors.New("overlay: image dimensions differ from display")

	// ErrInvalidArgument is returned for caller errors such as a zero ramp
	// step or a negative duration.
	ErrInvalidArgument = errors.New("overlay: invalid argument")

	// ErrUpdateCommit is returned when an update cannot be started, staged
	// or submitted.
	ErrUpdateCommit = errors.New("overlay: update commit failed")

	// ErrNotInitialized is returned by operations on a freed session.
	ErrNotInitialized = errors.New("overlay: session not initialized")

	// ErrCanceled is returned when a context ends an operation early. The
	// context error is wrapped as well.
	ErrCanceled = errors.New("overlay: canceled")
)

// errZeroHandle stands in for a nil error paired with a zero handle.
var errZeroHandle = errors.New("zero handle")

func canceled(err error) error {
	return fmt.Errorf("%w: %w", ErrCanceled, err)
}

// ErrorCode is the integer status reported to hosts.
type ErrorCode int

// Error codes. CodeOK is zero.
const (
	CodeOK ErrorCode = iota
	CodeDisplayOpen
	CodeGeometryQuery
	CodeResourceCreate
	CodeAllocation
	CodeDecode
	CodeDimensionMismatch
	CodeInvalidArgument
	CodeUpdateCommit
	CodeCanceled
	CodeUnknown
)

var codeNames = [...]string{
	CodeOK:                "OK",
	CodeDisplayOpen:       "DisplayOpenFailure",
	CodeGeometryQuery:     "GeometryQueryFailure",
	CodeResourceCreate:    "ResourceCreateFailure",
	CodeAllocation:        "AllocationFailure",
	CodeDecode:            "DecodeFailure",
	CodeDimensionMismatch: "DimensionMismatch",
	CodeInvalidArgument:   "InvalidArgument",
	CodeUpdateCommit:      "UpdateCommitFailure",
	CodeCanceled:          "Canceled",
	CodeUnknown:           "Unknown",
}

// String returns the name of the code.
func (c ErrorCode) String() string {
	if c >= 0 && int(c) < len(codeNames) {
		return codeNames[c]
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

var codeTable = []struct {
	err  error
	code ErrorCode
}{
	{ErrDisplayOpen, CodeDisplayOpen},
	{ErrGeometryQuery, CodeGeometryQuery},
	{ErrResourceCreate, CodeResourceCreate},
	{ErrAllocation, CodeAllocation},
	{ErrDecode, CodeDecode},
	{ErrDimensionMismatch, CodeDimensionMismatch},
	{ErrInvalidArgument, CodeInvalidArgument},
	{ErrNotInitialized, CodeInvalidArgument},
	{ErrUpdateCommit, CodeUpdateCommit},
	{ErrCanceled, CodeCanceled},
	{context.Canceled, CodeCanceled},
	{context.DeadlineExceeded, CodeCanceled},
}

// Code maps err onto an ErrorCode. A nil error is CodeOK; errors that wrap
// none of the sentinels are CodeUnknown.
func Code(err error) ErrorCode {
	if err == nil {
		return CodeOK
	}
	for _, e := range codeTable {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return CodeUnknown
}
