package core

import (
	"github.com/cockroachdb/errors"
)

var (
	ErrInvalidArgument       = errors.New("invalid argument")
	ErrInvalidOperation      = errors.New("invalid operation")
	ErrResourceReleased      = errors.New("resource released")
	ErrResourceExhausted     = errors.New("resource table exhausted")
	ErrBackendNotInitialized = errors.New("renderer backend not initialized")
	ErrUploadFailed          = errors.New("gpu upload failed")
	ErrCommandCancelled      = errors.New("command cancelled")
	ErrUnsupported           = errors.New("unsupported")
	ErrUnknown               = errors.New("unknown")
)

// InvalidArgumentf builds an error that matches ErrInvalidArgument with errors.Is.
func InvalidArgumentf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrInvalidArgument)
}

// InvalidOperationf builds an error that matches ErrInvalidOperation with errors.Is.
func InvalidOperationf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrInvalidOperation)
}
