package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrConfiguration   = errors.New("configuration error")
	ErrProviderFailure = errors.New("provider failure")
	ErrQueueFull       = errors.New("task queue full")
)
