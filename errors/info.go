package errors

import "fmt"

const (
	// SuccessCode declares a response use 0 to signal that the processing
	// was successful and no error is returned.
	SuccessCode = 0

	// All unclassified errors that do not provide a code are clubbed
	// under an internal error code and a generic message instead of
	// detailed error string.
	internalCode uint32 = 1
	internalLog         = "internal error"
)

// Info returns the error information that is safe to send to a peer. Any
// error that does not provide Code information is categorized as error with
// code 1.
// When not running in a debug mode all messages of errors that do not provide
// Code information are replaced with generic "internal error".
func Info(err error, debug bool) (uint32, string) {
	if isNilErr(err) {
		return SuccessCode, ""
	}

	// Only non-internal errors information can be exposed. Any error that
	// does not explicitly expose its state by providing a code must be
	// silenced.
	if c := code(err); c != internalCode {
		if debug {
			return c, fmt.Sprintf("%+v", err)
		}
		return c, err.Error()
	}

	if debug {
		return internalCode, fmt.Sprintf("%+v", err)
	}
	return internalCode, internalLog
}

type coder interface {
	Code() uint32
}

// code test if given error contains a code and returns the value of it if
// available. This function is testing for the causer interface as well and
// unwraps the error.
func code(err error) uint32 {
	if isNilErr(err) {
		return SuccessCode
	}

	for {
		if c, ok := err.(coder); ok {
			return c.Code()
		}

		if c, ok := err.(causer); ok {
			err = c.Cause()
		} else {
			return internalCode
		}
	}
}

// Redact replace all errors that do not initialize with a registered error
// with a generic internal error instance.
//
// This is a no-operation function when running in debug mode.
func Redact(err error, debug bool) error {
	if debug {
		return err
	}
	if ErrPanic.Is(err) {
		return fmt.Errorf(internalLog)
	}
	if code(err) == internalCode {
		return fmt.Errorf(internalLog)
	}
	return err
}
