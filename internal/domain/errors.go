package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrNotConfigured = errors.New("not configured")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrInvalidOrder  = errors.New("invalid order parameters")
	ErrSigningFailed = errors.New("signing failed")
	ErrWSDisconnect  = errors.New("websocket disconnected")
	ErrNoReference   = errors.New("no reference price captured")
	ErrNoQuote       = errors.New("no executable quote")
)
