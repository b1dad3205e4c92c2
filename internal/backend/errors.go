package backend

import (
	"errors"
	"fmt"
)

// ErrAlreadyLoggedIn rejects a login for an identity that is already active.
var ErrAlreadyLoggedIn = errors.New("Already logged in. Use Verify Session to recover E2EE keys")

// ErrUnsupported marks capabilities a backend does not provide.
var ErrUnsupported = errors.New("not supported by this backend")

// AuthError is a credential or identity failure.
type AuthError struct {
	Op     string
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	switch {
	case e.Err != nil && e.Reason != "":
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Reason, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

// BackendError is a network or protocol failure.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *BackendError) Unwrap() error { return e.Err }

// NotFoundError is a lookup miss on local state.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %q not found", e.Kind, e.ID) }

// ValidationError is a missing or malformed form field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Wrap turns err into a BackendError unless it already carries a type
// from this package.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		auth *AuthError
		be   *BackendError
		nf   *NotFoundError
		ve   *ValidationError
	)
	if errors.As(err, &auth) || errors.As(err, &be) || errors.As(err, &nf) || errors.As(err, &ve) {
		return err
	}
	return &BackendError{Op: op, Err: err}
}

// Message returns the text shown to the user for err.
func Message(err error) string {
	var (
		be *BackendError
		ve *ValidationError
	)
	switch {
	case errors.As(err, &ve):
		return ve.Message
	case errors.Is(err, ErrAlreadyLoggedIn):
		return ErrAlreadyLoggedIn.Error()
	case errors.As(err, &be):
		return be.Err.Error()
	}
	return err.Error()
}
