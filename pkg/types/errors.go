package types

import "errors"

// Store and registry errors.
var (
	ErrUnknownKind        = errors.New("unknown kind")
	ErrNotFound           = errors.New("entity not found")
	ErrMalformedAttribute = errors.New("malformed attribute value")
	ErrCorruptStore       = errors.New("corrupt store document")
	ErrStoreDetached      = errors.New("store is detached")
	ErrAlreadyAttached    = errors.New("store is already attached")
)
