package entities

import "errors"

// Domain errors
var (
	ErrInvalidMeetingID = errors.New("invalid meeting id")

	// Queue errors
	ErrJobNotQueued = errors.New("job is not waiting or delayed")
)
