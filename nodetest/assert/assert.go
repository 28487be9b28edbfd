// Package assert provides the small set of assertions used across the node
// tests. Each helper fails the test immediately.
package assert

import (
	"reflect"
	"testing"

	"github.com/iov-one/msignode/errors"
)

// Tester is the minimal subset of testing.TB needed to run most assert commands
type Tester interface {
	Helper()
	Fatal(...interface{})
	Fatalf(string, ...interface{})
}

// Nil fails the test if given value is not nil.
func Nil(t Tester, value interface{}) {
	t.Helper()
	if !isNil(value) {
		// Use %+v so that an error carrying a stack trace prints it.
		t.Fatalf("want a nil value, got %+v", value)
	}
}

// NotNil fails the test if given value is nil.
func NotNil(t Tester, value interface{}) {
	t.Helper()
	if isNil(value) {
		t.Fatal("want a non nil value")
	}
}

func isNil(value interface{}) (isnil bool) {
	if value == nil {
		return true
	}

	defer func() {
		if recover() != nil {
			isnil = false
		}
	}()

	// IsNil panics for anything that is not a chan, func, interface,
	// map, pointer or slice.
	return reflect.ValueOf(value).IsNil()
}

// Equal fails the test if two values are not equal.
func Equal(t Tester, want, got interface{}) {
	t.Helper()
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("values not equal \nwant %T %v\n got %T %v", want, want, got, got)
	}
}

// Panics will run given function and recover any panic. It will fail the test
// if given function call did not panic.
func Panics(t Tester, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Fatal("panic expected")
		}
	}()
	fn()
}

// IsErr fails the test unless got is want or wraps want. Registered errors
// are compared with their Is method.
func IsErr(t Tester, want, got error) {
	t.Helper()

	if want == got {
		return
	}
	if kind, ok := want.(*errors.Error); ok && kind != nil && kind.Is(got) {
		return
	}
	t.Fatalf("want %q, got %+v", want, got)
}

// FieldError ensures that given error contains the exact match of a single
// field error, tested by its type (.Is method call).
// To test that no error was found for a given field name, use nil as the
// match value.
func FieldError(t testing.TB, err error, fieldName string, want *errors.Error) {
	t.Helper()

	errs := errors.FieldErrors(err, fieldName)
	if want == nil {
		if len(errs) != 0 {
			for i, e := range errs {
				t.Logf("\terror %d: %q", i+1, e)
			}
			t.Fatalf("expected no error for %q, got %d", fieldName, len(errs))
		}
		return
	}

	switch len(errs) {
	case 0:
		t.Fatalf("no error found for %q", fieldName)
	case 1:
		if !want.Is(errs[0]) {
			t.Fatalf("unexpected error found: %q", errs[0])
		}
	default:
		for i, e := range errs {
			t.Logf("\terror %d: %q", i+1, e)
		}
		t.Fatalf("want one error for %q, got %d", fieldName, len(errs))
	}
}
