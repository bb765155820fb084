package model

import "errors"

var (
	ErrTaskNotFound    = errors.New("task not found")
	ErrInvalidTask     = errors.New("invalid task")
	ErrEmptyName       = errors.New("name is empty")
	ErrInvalidPriority = errors.New("unknown priority")
	ErrInvalidCategory = errors.New("unknown category")
	ErrInvalidStatus   = errors.New("unknown status")
	ErrMissingDeadline = errors.New("deadline is required")
)
