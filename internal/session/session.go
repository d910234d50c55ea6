// Package session holds the volatile per-call conversation state. Nothing
// here survives a process restart - callers simply redial.
package session

import "time"

// Role identifies the speaker of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one (speaker, utterance) pair in conversation order.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Phase is the call's position in the turn-taking protocol.
type Phase string

const (
	PhaseNew            Phase = "new"
	PhaseGreetingSent   Phase = "greeting_sent"
	PhaseAwaitingSpeech Phase = "awaiting_speech"
	PhaseInputReceived  Phase = "input_received"
	PhaseThinking       Phase = "thinking"
	PhaseReplySent      Phase = "reply_sent"
	PhaseTerminated     Phase = "terminated"
)

// CallSession is the conversation state for one active call identifier.
// All access goes through Store, which serializes per-key mutation; the
// struct itself carries no locking.
type CallSession struct {
	CallSID   string    `json:"call_sid"`
	Phase     Phase     `json:"phase"`
	History   []Turn    `json:"history"`
	Greeted   bool      `json:"greeted"`
	TurnSeq   int       `json:"turn_seq"`
	StartedAt time.Time `json:"started_at"`

	// pendingInput holds the latest caller utterance between the
	// speech-result and continue phases. Consumed exactly once.
	pendingInput    string
	hasPendingInput bool

	maxTurns int
}

// AppendTurn records a turn and enforces the history cap: when the history
// outgrows the cap, the opening assistant turn is kept and the oldest of the
// rest are dropped, so dialogue-engine input stays bounded.
func (s *CallSession) AppendTurn(role Role, text string) {
	s.History = append(s.History, Turn{Role: role, Text: text})

	if s.maxTurns <= 0 || len(s.History) <= s.maxTurns {
		return
	}

	kept := make([]Turn, 0, s.maxTurns)
	kept = append(kept, s.History[0])
	kept = append(kept, s.History[len(s.History)-(s.maxTurns-1):]...)
	s.History = kept
}

// SetPendingInput stores the caller utterance awaiting the continue phase.
func (s *CallSession) SetPendingInput(text string) {
	s.pendingInput = text
	s.hasPendingInput = true
}

// TakePendingInput returns the stored utterance and clears it. The second
// return is false when nothing is pending, which happens on duplicate or
// out-of-order continue callbacks.
func (s *CallSession) TakePendingInput() (string, bool) {
	if !s.hasPendingInput {
		return "", false
	}
	text := s.pendingInput
	s.pendingInput = ""
	s.hasPendingInput = false
	return text, true
}

// HasPendingInput reports whether an utterance awaits consumption.
func (s *CallSession) HasPendingInput() bool {
	return s.hasPendingInput
}

// NextTurnSeq increments and returns the per-call turn counter used to name
// synthesized audio resources uniquely.
func (s *CallSession) NextTurnSeq() int {
	s.TurnSeq++
	return s.TurnSeq
}

// Snapshot returns a copy safe to read outside the store's per-key lock.
func (s *CallSession) Snapshot() CallSession {
	cp := *s
	cp.History = make([]Turn, len(s.History))
	copy(cp.History, s.History)
	return cp
}
