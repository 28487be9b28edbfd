/*
Package errors implements the error registry shared by all node components.

Reuse the root errors declared in this package whenever possible. Every root
error carries a numeric code that is stable on the wire, so that a peer
receiving an error response can tell a rejected signature apart from an
internal failure.

If you need a new root error, declare it with Register(code, description)
during program startup. To create an error instance, use ErrXyz.New("...") or
errors.Wrap(ErrXyz, "...") at the point of creation so that a stacktrace is
attached. Only the innermost wrap records the stacktrace.

Once you have an error, use fmt formatting to get more context

	%s is just the error message
	%+v is the full stack trace
	%v appends a compressed [filename:line] where the error was created
*/
package errors
