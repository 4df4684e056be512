package config

import (
	"errors"
	"fmt"
)

// Error reports a configuration-class failure: the declared system cannot run
// as configured. It is never retried.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf builds an *Error for op with a formatted cause.
func Errorf(op, format string, args ...any) error {
	return &Error{Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap marks err as configuration-class. Errors that already are keep their op.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var cfgErr *Error
	if errors.As(err, &cfgErr) {
		return err
	}
	return &Error{Op: op, Err: err}
}

// IsConfigError reports whether err is, or wraps, an *Error.
func IsConfigError(err error) bool {
	var cfgErr *Error
	return errors.As(err, &cfgErr)
}
