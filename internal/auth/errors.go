package auth

import "errors"

// Sentinel errors for identity tickets.
var (
	ErrMalformedTicket = errors.New("malformed ticket")
	ErrBadSignature    = errors.New("ticket signature mismatch")
	ErrTicketExpired   = errors.New("ticket expired")
	ErrEmptySecret     = errors.New("ticket secret is empty")
	ErrEmptyAccount    = errors.New("account is empty")
)
