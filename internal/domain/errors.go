package domain

import "errors"

// Sentinel errors for the failure classes the call flow knows how to recover
// from - use with errors.Is().
var (
	// ErrNotFound indicates no session exists for a call identifier.
	ErrNotFound = errors.New("session not found")

	// ErrGeneration indicates the dialogue engine failed or timed out.
	// Recovered locally with a scripted apology reply.
	ErrGeneration = errors.New("reply generation failed")

	// ErrSynthesis indicates both the primary and fallback voice attempts
	// failed. Recovered at the protocol layer with the provider's built-in
	// voice.
	ErrSynthesis = errors.New("speech synthesis failed")
)
