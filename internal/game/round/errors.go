package round

import "errors"

// ErrInvalidTransition is returned when Start is called while a round is active.
var ErrInvalidTransition = errors.New("invalid round transition")
