package template

import "errors"

var (
	ErrIndexOutOfRange    = errors.New("component index out of range")
	ErrUnknownField       = errors.New("unknown field")
	ErrInvalidValue       = errors.New("invalid value")
	ErrDuplicateComponent = errors.New("duplicate component type")
	ErrUnknownComponent   = errors.New("unknown component type")
)
