package conversation

import (
	"context"

	"echo/core"
	"echo/diary"
	"echo/session"
)

// PromptBuilder is satisfied by *prompt.Assembler.
type PromptBuilder interface {
	BuildSystemPrompt(ctx context.Context, sess *session.Session) (string, error)
	BuildConversationPrompt(ctx context.Context, sess *session.Session, userMessage string) (string, error)
	GreetingInstruction() string
}

// Transcriber is satisfied by *stt.STTHandler.
type Transcriber interface {
	Transcribe(ctx context.Context, in core.AudioInput) (string, error)
}

// Responder is satisfied by *llm.LLMHandler.
type Responder interface {
	GenerateGreeting(ctx context.Context, systemPrompt, instruction string) (string, error)
	GenerateResponse(ctx context.Context, prompt string) (string, error)
}

// Synthesizer is satisfied by *tts.TTSHandler.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice core.VoiceSettings) ([]byte, error)
}

// DiaryWriter is satisfied by *diary.Service. A nil entry means nothing was written.
type DiaryWriter interface {
	GenerateAndSave(ctx context.Context, snap session.Snapshot) (*diary.Entry, error)
}
