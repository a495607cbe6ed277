package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrRateLimited    = errors.New("rate limited")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidOrder   = errors.New("invalid order parameters")
	ErrSigningFailed  = errors.New("signing failed")
	ErrNoOrderID      = errors.New("gateway returned no order id")
	ErrStaleSnapshot  = errors.New("snapshot data is stale")
	ErrMarketMismatch = errors.New("market id mismatch")
)
