package errors

import (
	"fmt"
	"strings"
)

// Append clubs together all provided errors. Nil values are ignored. If
// there is no error to return, nil is returned.
//
// Use this function to collect several independent failures, for example
// when validating each field of a configuration.
func Append(errs ...error) error {
	var multi multiErr
	for _, e := range errs {
		if isNilErr(e) {
			continue
		}
		if m, ok := e.(*multiErr); ok {
			multi = append(multi, *m...)
			continue
		}
		multi = append(multi, e)
	}

	switch len(multi) {
	case 0:
		return nil
	case 1:
		return multi[0]
	default:
		return &multi
	}
}

// multiErr is a collection of independent errors. It is not flattened when
// nested inside of a wrapped error.
type multiErr []error

func (me *multiErr) Error() string {
	points := make([]string, len(*me))
	for i, err := range *me {
		points[i] = fmt.Sprintf("* %s", err)
	}
	return fmt.Sprintf("%d errors occurred:\n\t%s", len(*me), strings.Join(points, "\n\t"))
}

// Unpack implements unpacker interface.
func (me *multiErr) Unpack() []error {
	return *me
}

// Code returns the code of the first error, consistent with a fail-fast
// approach.
func (me *multiErr) Code() uint32 {
	if len(*me) == 0 {
		return SuccessCode
	}
	return code((*me)[0])
}

// unpacker is implemented by errors that contain more than a single error
// instance.
type unpacker interface {
	Unpack() []error
}
