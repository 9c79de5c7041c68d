package core

type LLMMessageRole string

const (
	LLMMessageRoleUser      LLMMessageRole = "user"
	LLMMessageRoleAssistant LLMMessageRole = "assistant"
	LLMMessageRoleSystem    LLMMessageRole = "system"
)

// LLMMessage represents a message exchanged with the LLM.
type LLMMessage struct {
	Role    LLMMessageRole `json:"role"`
	Message string         `json:"message"`
}

func SystemMessage(text string) LLMMessage {
	return LLMMessage{Role: LLMMessageRoleSystem, Message: text}
}

func UserMessage(text string) LLMMessage {
	return LLMMessage{Role: LLMMessageRoleUser, Message: text}
}

// ChatRequest is one non-streaming chat completion call.
type ChatRequest struct {
	Messages    []LLMMessage
	Model       string
	Temperature float32
	MaxTokens   int
}
