package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Field attaches the name of the offending attribute to err. Nil is returned
// for a nil err.
//
// Name nested attributes with a dot separated path using the Go names of the
// structure, for example Node.Nethash or Accounts.3.PublicKey.
func Field(name string, err error, description string, args ...interface{}) error {
	if isNilErr(err) {
		return nil
	}
	if stackTrace(err) == nil {
		err = errors.WithStack(err)
	}
	if len(args) > 0 {
		description = fmt.Sprintf(description, args...)
	}
	return &fieldError{parent: err, name: name, desc: description}
}

// AppendField adds a field error to the collection in errs. A nil fieldErr
// leaves errs untouched.
func AppendField(errs error, name string, fieldErr error) error {
	return Append(errs, Field(name, fieldErr, ""))
}

type fieldError struct {
	parent error
	name   string
	desc   string
}

func (e *fieldError) Error() string {
	if e.desc == "" {
		return fmt.Sprintf("field %q: %s", e.name, e.parent)
	}
	return fmt.Sprintf("field %q: %s: %s", e.name, e.desc, e.parent)
}

func (e *fieldError) Cause() error {
	return e.parent
}

func (e *fieldError) Field() string {
	return e.name
}

type fielder interface {
	Field() string
}

// FieldErrors returns all errors in the err tree that were created for the
// given field. The outermost match of every branch is returned.
func FieldErrors(err error, name string) []error {
	var res []error
	walkFields(err, func(f fielder, e error) bool {
		if f.Field() != name {
			return true
		}
		res = append(res, e)
		return false
	})
	return res
}

// Fields returns the names of all fields reported in the err tree, in the
// order they were appended. A name is listed once.
func Fields(err error) []string {
	var names []string
	seen := make(map[string]bool)
	walkFields(err, func(f fielder, _ error) bool {
		if !seen[f.Field()] {
			seen[f.Field()] = true
			names = append(names, f.Field())
		}
		return false
	})
	return names
}

// walkFields calls fn for every field error found in the tree. Descending
// below a field error happens only when fn returns true.
func walkFields(err error, fn func(fielder, error) bool) {
	for !isNilErr(err) {
		if f, ok := err.(fielder); ok {
			if !fn(f, err) {
				return
			}
		}
		// An unpacker exposes every child, so its cause is never
		// followed separately.
		if u, ok := err.(unpacker); ok {
			for _, e := range u.Unpack() {
				walkFields(e, fn)
			}
			return
		}
		c, ok := err.(causer)
		if !ok {
			return
		}
		err = c.Cause()
	}
}
