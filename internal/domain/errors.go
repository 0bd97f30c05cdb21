package domain

import "errors"

var (
	// ErrDuplicateSubmission is returned when a fingerprint already has a live
	// observation for the same (provider, plan) inside the anti-duplication window.
	ErrDuplicateSubmission = errors.New("duplicate submission inside anti-duplication window")

	// ErrAlreadyVoted is returned when a fingerprint repeats a vote in the same direction.
	ErrAlreadyVoted = errors.New("already voted in this direction")

	ErrAcceptanceNotFound  = errors.New("acceptance record not found")
	ErrObservationNotFound = errors.New("observation not found")
	ErrProviderNotFound    = errors.New("provider not found")
)
