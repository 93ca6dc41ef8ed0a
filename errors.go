package main

import (
	"fmt"

	"github.com/pkg/errors"
)

// ConfigError is a bad request, raised before the tree is touched.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return "configuration error: " + e.Msg
}

func configErrorf(format string, args ...interface{}) error {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether err, or its cause, is a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// FSError is a failed delete, rename or listing of one entry.
type FSError struct {
	Op   string
	Path string
	Err  error
}

func (e *FSError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FSError) Unwrap() error { return e.Err }

func fsError(op, path string, err error) *FSError {
	return &FSError{Op: op, Path: path, Err: errors.WithStack(err)}
}
