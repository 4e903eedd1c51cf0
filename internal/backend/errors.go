package backend

import "errors"

// dependencyUnavailableError signals that a runtime the backend needs is
// missing from this build or unreachable.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return "dependency unavailable: " + e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing runtime
// dependency.
func IsDependencyUnavailable(err error) bool {
	var d dependencyUnavailableError
	return errors.As(err, &d)
}
