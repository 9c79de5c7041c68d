package core

import (
	"mime"
	"strings"
)

type AudioEncodingFormat int

const (
	PCM  AudioEncodingFormat = iota // Pulse-code modulation format.
	ULAW                            // μ-law encoding format.
	ALAW                            // A-law encoding format.
	// Compressed containers (mp3, m4a, webm, wav) are passed through untouched.
	Container
)

// Upload MIME types accepted by the transcription engines.
const (
	MimeTypeMPEG  = "audio/mpeg"
	MimeTypeMP3   = "audio/mp3"
	MimeTypeMP4   = "audio/mp4"
	MimeTypeMPGA  = "audio/mpga"
	MimeTypeM4A   = "audio/m4a"
	MimeTypeWAV   = "audio/wav"
	MimeTypeWebM  = "audio/webm"
	MimeTypeXWAV  = "audio/x-wav"
	MimeTypeWave  = "audio/wave"
	MimeTypeBasic = "audio/basic"
	MimeTypeMuLaw = "audio/x-mulaw"
	MimeTypePCMU  = "audio/pcmu"
	MimeTypeALaw  = "audio/x-alaw"
	MimeTypePCMA  = "audio/pcma"
)

// AudioInput is one recorded utterance as uploaded by a client.
type AudioInput struct {
	Data     []byte
	MimeType string
	FileName string
}

// BaseMimeType lowercases the MIME type and drops parameters such as codecs=opus.
func (a AudioInput) BaseMimeType() string {
	mt, _, err := mime.ParseMediaType(a.MimeType)
	if err != nil {
		mt, _, _ = strings.Cut(a.MimeType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

// Encoding classifies the payload so telephony G.711 audio can be transcoded first.
func (a AudioInput) Encoding() AudioEncodingFormat {
	switch a.BaseMimeType() {
	case MimeTypeBasic, MimeTypeMuLaw, MimeTypePCMU:
		return ULAW
	case MimeTypeALaw, MimeTypePCMA:
		return ALAW
	default:
		return Container
	}
}

// Extension returns a filename extension the engines use to sniff the container.
func (a AudioInput) Extension() string {
	switch a.BaseMimeType() {
	case MimeTypeMPEG, MimeTypeMP3, MimeTypeMPGA:
		return ".mp3"
	case MimeTypeMP4, MimeTypeM4A:
		return ".m4a"
	case MimeTypeWebM:
		return ".webm"
	default:
		return ".wav"
	}
}
