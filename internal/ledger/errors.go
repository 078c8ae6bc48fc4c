package ledger

import "errors"

// Sentinel errors for the token ledger.
var (
	ErrInsufficientFunds = errors.New("insufficient token balance")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInvalidAccount    = errors.New("empty account")
	ErrQueueFull         = errors.New("settlement queue full")
	ErrStopped           = errors.New("settlement dispatcher stopped")
)
