package bc7

import "errors"

// ErrorCode is a codec API error code.
type ErrorCode uint32

const (
	// Success reports that an operation completed without error.
	Success ErrorCode = 0

	// ErrBadParam reports a nil or otherwise invalid argument.
	ErrBadParam ErrorCode = 1

	// ErrBadDimensions reports image dimensions that are not positive
	// multiples of the 4x4 block size.
	ErrBadDimensions ErrorCode = 2

	// ErrBadBufferSize reports a pixel or block buffer whose length does not
	// match the requested image geometry.
	ErrBadBufferSize ErrorCode = 3

	// ErrBadSettings reports encoder settings outside their valid range.
	ErrBadSettings ErrorCode = 4
)

// String returns a short stable name for the code.
//
// For unknown codes, it returns "".
func (c ErrorCode) String() string {
	switch c {
	case Success:
		return "success"
	case ErrBadParam:
		return "bad parameter"
	case ErrBadDimensions:
		return "bad dimensions"
	case ErrBadBufferSize:
		return "bad buffer size"
	case ErrBadSettings:
		return "bad settings"
	default:
		return ""
	}
}

// Error is a typed error that carries a codec error code.
type Error struct {
	Code ErrorCode
	Msg  string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg != "" {
		return e.Msg
	}
	if s := e.Code.String(); s != "" {
		return "bc7: " + s
	}
	return "bc7: error"
}

// ErrorCodeOf returns the error code carried by err, or Success for nil.
// Errors from outside the codec map to ErrBadParam.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return Success
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrBadParam
}

func newError(code ErrorCode, msg string) error {
	return &Error{Code: code, Msg: msg}
}
