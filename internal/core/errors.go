package core

import (
	"errors"
	"fmt"
)

// Sentinel errors returned (wrapped in a *PathError) by tree operations.
var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateName = errors.New("name already exists")
	ErrInvalidPath   = errors.New("invalid path")
)

// PathError records a failed tree operation and the path it was applied to.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Path, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}
