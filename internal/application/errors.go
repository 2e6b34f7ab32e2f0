package application

import "errors"

var (
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrStorageUnavailable   = errors.New("object storage is not configured")
	ErrDetectionSetTooLarge = errors.New("detection set too large")
)
