package room

import "errors"

// Sentinel errors for the room system.
var (
	ErrRoomFull       = errors.New("room is full")
	ErrRoomClosed     = errors.New("room is closed")
	ErrPlayerNotFound = errors.New("player not in room")
	ErrAlreadyJoined  = errors.New("player already in a room")
	ErrUnknownPerk    = errors.New("unknown perk")
	ErrPerkOwned      = errors.New("perk already owned")
)
