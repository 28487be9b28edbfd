package errors

import (
	stdlib "errors"
	"fmt"
	"testing"

	"github.com/pkg/errors"
)

func TestCause(t *testing.T) {
	io := stdlib.New("connection reset")

	cases := map[string]struct {
		err  error
		root error
	}{
		"root error": {
			err:  ErrSenderNotFound,
			root: ErrSenderNotFound,
		},
		"wrapped root error": {
			err:  Wrapf(ErrTransactionNotFound, "transaction %s", "123"),
			root: ErrTransactionNotFound,
		},
		"wrapped stdlib error": {
			err:  Wrap(Wrap(io, "post signatures"), "peer 10.0.0.1:5555"),
			root: io,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			if got := errors.Cause(tc.err); got != tc.root {
				t.Fatalf("want %v, got %v", tc.root, got)
			}
		})
	}
}

func TestErrorIs(t *testing.T) {
	cases := map[string]struct {
		kind *Error
		err  error
		want bool
	}{
		"same root error": {
			kind: ErrDuplicateSignature,
			err:  ErrDuplicateSignature,
			want: true,
		},
		"different root error": {
			kind: ErrDuplicateSignature,
			err:  ErrSignatureVerification,
		},
		"wrapped with pkg/errors": {
			kind: ErrPeerUnreachable,
			err:  errors.Wrap(ErrPeerUnreachable, "ETIMEOUT"),
			want: true,
		},
		"wrapped different error": {
			kind: ErrPeerUnreachable,
			err:  Wrap(ErrIncompatiblePeer, "ENETHASH"),
		},
		"stdlib error": {
			kind: ErrNotFound,
			err:  fmt.Errorf("not found"),
		},
		"wrapped stdlib error": {
			kind: ErrNotFound,
			err:  Wrap(fmt.Errorf("not found"), "account"),
		},
		"nil kind and nil error": {
			want: true,
		},
		"nil kind and typed nil error": {
			err:  (*customError)(nil),
			want: true,
		},
		"nil kind and an error": {
			err: ErrNotFound,
		},
		"kind and nil error": {
			kind: ErrNotFound,
		},
		"collection holding the error": {
			kind: ErrPayloadNotFound,
			err:  Append(ErrState, Wrap(ErrPayloadNotFound, "tx 1"), ErrEmpty),
			want: true,
		},
		"collection without the error": {
			kind: ErrPayloadNotFound,
			err:  Append(ErrState, ErrEmpty),
		},
		"empty collection": {
			kind: ErrPayloadNotFound,
			err:  Append(nil, nil),
		},
		"nil kind and collection": {
			err: Append(ErrState),
		},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			if got := tc.kind.Is(tc.err); got != tc.want {
				t.Fatalf("want %v, got %v", tc.want, got)
			}
		})
	}
}

type customError struct {
}

func (customError) Error() string {
	return "custom error"
}

func TestWrapEmpty(t *testing.T) {
	if err := Wrap(nil, "wrapping <nil>"); err != nil {
		t.Fatal(err)
	}
}

func TestRegisterDuplicatedCode(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("panic expected")
		}
	}()
	Register(ErrSenderNotFound.Code(), "reused code")
}

func TestAdmissionErrorsAreDistinct(t *testing.T) {
	kinds := []*Error{
		ErrTransactionNotFound,
		ErrSenderNotFound,
		ErrSenderNotMultisig,
		ErrPermissionDenied,
		ErrDuplicateSignature,
		ErrSignatureVerification,
		ErrPayloadNotFound,
		ErrPeerUnreachable,
		ErrIncompatiblePeer,
	}
	for i, a := range kinds {
		for j, b := range kinds {
			if got := a.Is(Wrap(b, "wrapped")); got != (i == j) {
				t.Fatalf("%q is %q: %v", a, b, got)
			}
		}
	}
}
