package session

import "errors"

// ErrSessionClosed is returned when a disposed session is used.
var ErrSessionClosed = errors.New("session closed")

// busyError signals that a generation is already streaming.
type busyError struct{ sessionID string }

func (e busyError) Error() string { return "session busy: " + e.sessionID }

// ErrBusy returns the error used when a submission or a new session cannot
// start because a generation is streaming.
func ErrBusy(sessionID string) error { return busyError{sessionID: sessionID} }

// IsBusy reports whether err indicates a streaming generation blocked the call.
func IsBusy(err error) bool {
	var b busyError
	return errors.As(err, &b)
}
