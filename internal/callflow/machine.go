// Package callflow is the call-session state machine. It stitches the
// provider's stateless webhook events into an ordered multi-turn dialogue:
// greeting, speech capture, filler playback while the reply is generated,
// and termination.
package callflow

import (
	"context"
	"log/slog"
	"strings"

	"dispatchline/internal/dialogue"
	"dispatchline/internal/persona"
	"dispatchline/internal/session"
	"dispatchline/internal/speech"
	"dispatchline/internal/twiml"
)

// Archiver persists a finished call transcript. Implementations must be safe
// for concurrent use; a nil Archiver disables archiving.
type Archiver interface {
	ArchiveCall(ctx context.Context, s session.CallSession) error
}

// Config bounds the turn-taking protocol.
type Config struct {
	// ConfidenceMin is the transcription confidence below which input is
	// treated the same as empty input.
	ConfidenceMin float64
	// FirstGatherTimeout / GatherTimeout bound how long the provider waits
	// for the caller to start speaking, in seconds.
	FirstGatherTimeout int
	GatherTimeout      int
	// FirstSpeechTimeout / SpeechTimeout control end-of-speech detection.
	FirstSpeechTimeout string
	SpeechTimeout      string
	// ProcessPath and ContinuePath are the webhook paths the emitted
	// documents point back at.
	ProcessPath  string
	ContinuePath string
}

// Machine drives one transition per webhook event. Per-call serialization
// comes from the session store's per-key locks: a transition holds the
// call's lock from read to write, so overlapping events for the same call
// identifier cannot interleave.
type Machine struct {
	sessions  *session.Store
	generator dialogue.Generator
	synth     speech.Synthesizer
	audio     *speech.AudioStore
	persona   *persona.Persona
	archiver  Archiver
	cfg       Config
	logger    *slog.Logger
}

// NewMachine wires the state machine. archiver may be nil.
func NewMachine(
	sessions *session.Store,
	generator dialogue.Generator,
	synth speech.Synthesizer,
	audio *speech.AudioStore,
	p *persona.Persona,
	archiver Archiver,
	cfg Config,
	logger *slog.Logger,
) *Machine {
	return &Machine{
		sessions:  sessions,
		generator: generator,
		synth:     synth,
		audio:     audio,
		persona:   p,
		archiver:  archiver,
		cfg:       cfg,
		logger:    logger,
	}
}

// HandleInbound processes the inbound-call event: create or reuse the
// session, speak the opening line, start capturing speech.
func (m *Machine) HandleInbound(ctx context.Context, callSID string) *twiml.Response {
	var doc *twiml.Response
	created := m.sessions.Update(callSID, func(s *session.CallSession) {
		if !s.Greeted {
			opening, err := m.generator.GenerateReply(ctx, s.History, "", true)
			if err != nil {
				m.logger.Error("opening generation failed", "error", err, "call_sid", callSID)
				opening = m.persona.ApologyLine
			}
			s.AppendTurn(session.RoleAssistant, opening)
			s.Greeted = true
			doc = m.speakAndGather(ctx, s, opening, true)
		} else {
			// Duplicate inbound delivery for a live call: re-prompt
			// instead of replaying the greeting.
			doc = m.speakAndGather(ctx, s, m.persona.RepeatPrompt, false)
		}
		s.Phase = session.PhaseAwaitingSpeech
	})

	m.logger.Info("inbound call",
		"call_sid", callSID,
		"new_session", created,
	)
	return doc
}

// HandleSpeechResult processes the speech-captured event: stash the
// utterance for the continue phase and answer immediately with a local
// filler clip so the caller never hears dead air while the reply is
// generated.
func (m *Machine) HandleSpeechResult(ctx context.Context, callSID, transcript string, confidence float64) *twiml.Response {
	utterance := strings.TrimSpace(transcript)
	substituted := false
	if utterance == "" || confidence < m.cfg.ConfidenceMin {
		utterance = m.persona.RepeatPrompt
		substituted = true
	}

	m.sessions.Update(callSID, func(s *session.CallSession) {
		s.SetPendingInput(utterance)
		s.Phase = session.PhaseThinking
	})

	filler := m.persona.RandomFiller()
	m.logger.Info("speech captured",
		"call_sid", callSID,
		"confidence", confidence,
		"substituted", substituted,
		"filler", filler,
	)

	// The filler choice is cosmetic and never enters history.
	return twiml.PlayRedirect(m.audio.FillerURL(filler), m.cfg.ContinuePath)
}

// HandleContinue processes the post-filler redirect: consume the pending
// utterance, generate the real reply over the bounded history, speak it, and
// resume speech capture.
//
// A missing session or missing pending input (duplicate, reordered, or
// post-termination delivery) degrades to the repeat prompt instead of
// faulting, so the caller always receives a turn.
func (m *Machine) HandleContinue(ctx context.Context, callSID string) *twiml.Response {
	var doc *twiml.Response
	m.sessions.Update(callSID, func(s *session.CallSession) {
		input, ok := s.TakePendingInput()
		if !ok {
			input = m.persona.RepeatPrompt
		}

		reply, err := m.generator.GenerateReply(ctx, s.History, input, false)
		if err != nil {
			m.logger.Error("reply generation failed", "error", err, "call_sid", callSID)
			reply = m.persona.ApologyLine
		}

		s.AppendTurn(session.RoleUser, input)
		s.AppendTurn(session.RoleAssistant, reply)

		doc = m.speakAndGather(ctx, s, reply, false)
		s.Phase = session.PhaseAwaitingSpeech
	})

	return doc
}

// HandleCallEnded processes the termination notice: drop the session and
// archive its transcript when an archiver is configured.
func (m *Machine) HandleCallEnded(ctx context.Context, callSID string) {
	final := m.sessions.Delete(callSID)
	if final == nil {
		m.logger.Info("call ended for unknown session", "call_sid", callSID)
		return
	}

	final.Phase = session.PhaseTerminated
	m.logger.Info("call ended",
		"call_sid", callSID,
		"turns", len(final.History),
	)
	m.archive(ctx, *final)
}

// HandleEvicted archives a session the idle reaper removed. Wired as the
// store's eviction callback.
func (m *Machine) HandleEvicted(s session.CallSession) {
	s.Phase = session.PhaseTerminated
	m.archive(context.Background(), s)
}

func (m *Machine) archive(ctx context.Context, s session.CallSession) {
	if m.archiver == nil {
		return
	}
	if err := m.archiver.ArchiveCall(ctx, s); err != nil {
		m.logger.Error("transcript archive failed", "error", err, "call_sid", s.CallSID)
	}
}

// ApologyHangup is the terminal document for unrecoverable faults: a polite
// spoken apology, then hangup. The provider must never see a raw fault.
func (m *Machine) ApologyHangup() *twiml.Response {
	return twiml.SayHangup(m.persona.ApologyLine)
}

// PostHint answers a misconfigured GET webhook with a spoken hint.
func (m *Machine) PostHint() *twiml.Response {
	return twiml.SayHangup(m.persona.PostHint)
}

// speakAndGather synthesizes text and wraps it in a speech gather. When both
// synthesis attempts fail the document degrades to the provider's built-in
// voice so the caller is never left with silence.
func (m *Machine) speakAndGather(ctx context.Context, s *session.CallSession, text string, firstTurn bool) *twiml.Response {
	cfg := m.gatherConfig(firstTurn)

	url, err := m.synth.Synthesize(ctx, s.CallSID, s.NextTurnSeq(), text)
	if err != nil {
		m.logger.Error("synthesis failed, degrading to built-in voice",
			"error", err,
			"call_sid", s.CallSID,
		)
		return twiml.GatherSay(text, cfg, m.persona.GoodbyeLine)
	}
	return twiml.GatherPlay(url, cfg, m.persona.GoodbyeLine)
}

func (m *Machine) gatherConfig(firstTurn bool) twiml.GatherConfig {
	if firstTurn {
		return twiml.GatherConfig{
			Action:        m.cfg.ProcessPath,
			Timeout:       m.cfg.FirstGatherTimeout,
			SpeechTimeout: m.cfg.FirstSpeechTimeout,
		}
	}
	return twiml.GatherConfig{
		Action:        m.cfg.ProcessPath,
		Timeout:       m.cfg.GatherTimeout,
		SpeechTimeout: m.cfg.SpeechTimeout,
	}
}
