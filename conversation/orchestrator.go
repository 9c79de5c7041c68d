// Package conversation runs the start, message and end flows of a voice
// conversation against the session store and the speech and model services.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"echo/core"
	"echo/metrics"
	"echo/runner"
	"echo/session"
)

const (
	opStart   = "start"
	opMessage = "message"
	opEnd     = "end"

	taskAppendTurn = "append_turn"
	taskDiary      = "generate_diary"
)

type StartResult struct {
	Message   string
	Audio     []byte
	Timestamp time.Time
}

type MessageResult struct {
	UserMessage string
	AIResponse  string
	Audio       []byte
	Timestamp   time.Time
}

type EndResult struct {
	EndedAt time.Time
}

// Dependencies wires the orchestrator. Diaries and Metrics may be nil.
type Dependencies struct {
	Sessions    session.Store
	Prompts     PromptBuilder
	Transcriber Transcriber
	Responder   Responder
	Synthesizer Synthesizer
	Diaries     DiaryWriter
	Runner      *runner.Runner
	Metrics     *metrics.Recorder
}

type Orchestrator struct {
	deps   Dependencies
	logger *core.Logger
	now    func() time.Time
}

func NewOrchestrator(deps Dependencies, logger *core.Logger) (*Orchestrator, error) {
	switch {
	case deps.Sessions == nil:
		return nil, errors.New("conversation: session store is required")
	case deps.Prompts == nil:
		return nil, errors.New("conversation: prompt builder is required")
	case deps.Transcriber == nil:
		return nil, errors.New("conversation: transcriber is required")
	case deps.Responder == nil:
		return nil, errors.New("conversation: responder is required")
	case deps.Synthesizer == nil:
		return nil, errors.New("conversation: synthesizer is required")
	case deps.Runner == nil:
		return nil, errors.New("conversation: runner is required")
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Orchestrator{
		deps:   deps,
		logger: logger.With(map[string]any{"component": "conversation"}),
		now:    time.Now,
	}, nil
}

// Start opens today's conversation: it loads the user's context, generates
// a greeting and voices it. The greeting is appended to the history in the
// background.
func (o *Orchestrator) Start(ctx context.Context, userID string) (res StartResult, err error) {
	defer func() { o.finish(opStart, userID, err) }()

	sess, err := o.deps.Sessions.Initialize(ctx, userID)
	if err != nil {
		return StartResult{}, err
	}
	o.deps.Metrics.SetActiveSessions(o.deps.Sessions.Len())

	systemPrompt, err := o.deps.Prompts.BuildSystemPrompt(ctx, sess)
	if err != nil {
		return StartResult{}, err
	}

	greeting, err := timed(o, core.PhaseModel, func() (string, error) {
		return o.deps.Responder.GenerateGreeting(ctx, systemPrompt, o.deps.Prompts.GreetingInstruction())
	})
	if err != nil {
		return StartResult{}, err
	}

	audio, err := o.speak(ctx, greeting, sess.Preferences.Voice())
	if err != nil {
		return StartResult{}, err
	}

	o.appendInBackground(userID, nil, greeting)
	return StartResult{Message: greeting, Audio: audio, Timestamp: o.now()}, nil
}

// Message answers one recorded utterance within the user's open conversation.
func (o *Orchestrator) Message(ctx context.Context, userID string, in core.AudioInput) (res MessageResult, err error) {
	defer func() { o.finish(opMessage, userID, err) }()

	sess, err := o.deps.Sessions.Get(userID)
	if err != nil {
		return MessageResult{}, err
	}

	userMessage, err := timed(o, core.PhaseSTT, func() (string, error) {
		return o.deps.Transcriber.Transcribe(ctx, in)
	})
	if err != nil {
		return MessageResult{}, err
	}

	prompt, err := o.deps.Prompts.BuildConversationPrompt(ctx, sess, userMessage)
	if err != nil {
		return MessageResult{}, err
	}

	reply, err := timed(o, core.PhaseModel, func() (string, error) {
		return o.deps.Responder.GenerateResponse(ctx, prompt)
	})
	if err != nil {
		return MessageResult{}, err
	}

	audio, err := o.speak(ctx, reply, sess.Preferences.Voice())
	if err != nil {
		return MessageResult{}, err
	}

	o.appendInBackground(userID, &userMessage, reply)
	return MessageResult{
		UserMessage: userMessage,
		AIResponse:  reply,
		Audio:       audio,
		Timestamp:   o.now(),
	}, nil
}

// End closes the conversation. Diary generation runs in the background and
// its failure never fails End.
func (o *Orchestrator) End(ctx context.Context, userID string) (res EndResult, err error) {
	defer func() { o.finish(opEnd, userID, err) }()

	sess, err := o.deps.Sessions.Get(userID)
	if err != nil {
		return EndResult{}, err
	}
	snap := sess.Snapshot()

	if o.deps.Diaries != nil {
		o.deps.Runner.Go(taskDiary, func(ctx context.Context) error {
			entry, err := o.deps.Diaries.GenerateAndSave(ctx, snap)
			if err != nil {
				return fmt.Errorf("diary for user %q: %w", snap.UserID, err)
			}
			if entry != nil {
				o.deps.Metrics.DiarySaved()
			}
			return nil
		})
	}

	o.deps.Sessions.Finalize(userID)
	o.deps.Metrics.SetActiveSessions(o.deps.Sessions.Len())
	return EndResult{EndedAt: o.now()}, nil
}

// speak voices model output. The text was generated here, so a rejection by
// the synthesizer is a TTS processing failure rather than a client error.
func (o *Orchestrator) speak(ctx context.Context, text string, voice core.VoiceSettings) ([]byte, error) {
	return timed(o, core.PhaseTTS, func() ([]byte, error) {
		audio, err := o.deps.Synthesizer.Synthesize(ctx, text, voice)
		if errors.Is(err, core.ErrValidation) {
			return nil, core.NewProcessingError(core.PhaseTTS, fmt.Errorf("generated text rejected: %s", err))
		}
		return audio, err
	})
}

// appendInBackground records a turn after the response has been produced.
// The session may be finalized first; that append is dropped.
func (o *Orchestrator) appendInBackground(userID string, userMessage *string, aiResponse string) {
	o.deps.Runner.Go(taskAppendTurn, func(context.Context) error {
		err := o.deps.Sessions.AddTurn(userID, userMessage, aiResponse)
		if errors.Is(err, core.ErrNotFound) {
			o.logger.With(map[string]any{"user_id": userID}).Debug("session ended before turn was recorded")
			return nil
		}
		return err
	})
}

func (o *Orchestrator) finish(op, userID string, err error) {
	o.deps.Metrics.Operation(op, err)
	if err == nil {
		return
	}
	log := o.logger.With(map[string]any{"op": op, "user_id": userID, "error": err})
	switch core.KindOf(err) {
	case core.KindNotFound, core.KindValidation:
		log.Info("conversation request rejected")
	default:
		log.Error("conversation request failed")
	}
}

func timed[T any](o *Orchestrator, phase core.Phase, call func() (T, error)) (T, error) {
	start := time.Now()
	v, err := call()
	o.deps.Metrics.ObservePhase(phase, time.Since(start), err)
	return v, err
}
