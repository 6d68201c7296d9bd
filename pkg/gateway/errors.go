package gateway

import "errors"

var (
	ErrUnknownRequest = errors.New("gateway: unknown or completed request")
	ErrCarryMismatch  = errors.New("gateway: carry does not match pending request")
)
