package tracking

import (
	"errors"
	"fmt"
)

// ErrUnavailable is returned when tracking is requested without a position source.
var ErrUnavailable = errors.New("geolocation is not available")

// ErrUnknownMode is returned by StartTracking for modes other than passive and active.
var ErrUnknownMode = errors.New("unknown tracking mode")

// ErrorCode is the numeric failure reason reported by a position source.
type ErrorCode int

const (
	PermissionDenied    ErrorCode = 1
	PositionUnavailable ErrorCode = 2
	Timeout             ErrorCode = 3
)

var errorMessages = map[ErrorCode]string{
	PermissionDenied:    "Permission denied",
	PositionUnavailable: "Position unavailable",
	Timeout:             "Request timeout",
}

// ErrorMessage decodes a source error code.
func ErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return fmt.Sprintf("Unknown error (code %d)", int(code))
}

func (c ErrorCode) String() string {
	return ErrorMessage(c)
}

// PositionError is what a source hands to its error callback.
type PositionError struct {
	Code    ErrorCode
	Message string
}

func (e *PositionError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return ErrorMessage(e.Code)
}

// SourceError is the error a Controller surfaces through its error handler.
type SourceError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *SourceError) Error() string {
	return "unable to get geolocation data: " + e.Message
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// newSourceError decodes err into a SourceError. Errors that are not a
// *PositionError are reported as PositionUnavailable.
func newSourceError(err error) *SourceError {
	code := PositionUnavailable
	var pe *PositionError
	if errors.As(err, &pe) {
		code = pe.Code
	}
	return &SourceError{Code: code, Message: ErrorMessage(code), Err: err}
}
