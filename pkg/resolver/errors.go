package resolver

import (
	"github.com/agenthands/gwresolver/pkg/core"
	"github.com/agenthands/gwresolver/pkg/gateway"
)

var (
	ErrUnauthorized  = core.ErrUnauthorized
	ErrUnreachable   = core.ErrUnreachable
	ErrMalformedName = core.ErrMalformedName
	ErrFetchFailed   = core.ErrFetchFailed
	ErrNotFound      = core.ErrNotFound
	ErrInvalidInput  = core.ErrInvalidInput
	ErrClosed        = core.ErrClosed

	ErrUnknownRequest = gateway.ErrUnknownRequest
)
