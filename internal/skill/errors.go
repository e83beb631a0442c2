package skill

import "errors"

// Service errors
var (
	ErrSkillNotFound       = errors.New("skill not found")
	ErrRequestNotFound     = errors.New("request not found")
	ErrNotOwner            = errors.New("skill not owned by user")
	ErrSelfRequest         = errors.New("cannot request your own skill")
	ErrRequestResolved     = errors.New("request has already been resolved")
	ErrInvalidDecision     = errors.New("invalid request decision")
	ErrInvalidRating       = errors.New("rating must be between 1 and 5")
	ErrInvalidSkill        = errors.New("invalid skill listing")
	ErrFeedbackExists      = errors.New("feedback already submitted")
	ErrFeedbackNotEligible = errors.New("feedback requires an accepted request")
)

// Repository errors
var (
	ErrConcurrentUpdate = errors.New("skill was modified concurrently")
	ErrStoreUnavailable = errors.New("skill store unavailable")
)
