// Package dialogue produces the agent's next spoken line from the session
// history and the latest caller utterance.
package dialogue

import (
	"context"

	"dispatchline/internal/session"
)

// Generator is the dialogue engine contract. Implementations must not mutate
// the history slice they are given.
type Generator interface {
	// GenerateReply returns the next reply line. firstTurn marks the
	// synthetic opening turn of a call, where the utterance is empty and
	// implementations may answer with a scripted line instead of a
	// round trip.
	GenerateReply(ctx context.Context, history []session.Turn, utterance string, firstTurn bool) (string, error)
}
