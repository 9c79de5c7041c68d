package tts

type TTSConfig struct {
	// MaxTextLength caps the characters sent per request; Clova premium allows 2000.
	MaxTextLength int `json:"max_text_length"`
}

// DefaultConfig returns a TTSConfig with sensible defaults.
func DefaultConfig() TTSConfig {
	return TTSConfig{
		MaxTextLength: 2000,
	}
}
