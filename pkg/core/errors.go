package core

import (
	"errors"
)

var (
	ErrUnauthorized  = errors.New("gwresolver: unauthorized")
	ErrUnreachable   = errors.New("gwresolver: unreachable")
	ErrMalformedName = errors.New("gwresolver: malformed name")
	ErrFetchFailed   = errors.New("gwresolver: fetch failed")
	ErrNotFound      = errors.New("gwresolver: not found")
	ErrInvalidInput  = errors.New("gwresolver: invalid input")
	ErrCorrupt       = errors.New("gwresolver: corrupt data")
	ErrClosed        = errors.New("gwresolver: store closed")
)
