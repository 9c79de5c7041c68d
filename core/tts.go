package core

import (
	"math"
	"strings"
)

// VoiceTone is the timbre a user picked for the companion's voice.
type VoiceTone string

const (
	VoiceToneWarm   VoiceTone = "warm"
	VoiceToneCalm   VoiceTone = "calm"
	VoiceToneBright VoiceTone = "bright"
	VoiceToneGentle VoiceTone = "gentle"
)

const (
	DefaultVoiceSpeed = 1.0
	MinVoiceSpeed     = 0.5
	MaxVoiceSpeed     = 2.0
)

// ParseVoiceTone returns the matching tone, or VoiceToneWarm for anything unknown.
func ParseVoiceTone(s string) VoiceTone {
	switch t := VoiceTone(strings.ToLower(strings.TrimSpace(s))); t {
	case VoiceToneWarm, VoiceToneCalm, VoiceToneBright, VoiceToneGentle:
		return t
	default:
		return VoiceToneWarm
	}
}

type VoiceSettings struct {
	Speed float64   `json:"speed" yaml:"speed"`
	Tone  VoiceTone `json:"tone" yaml:"tone"`
}

func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{Speed: DefaultVoiceSpeed, Tone: VoiceToneWarm}
}

// Normalized fills defaults and clamps speed into [MinVoiceSpeed, MaxVoiceSpeed].
func (v VoiceSettings) Normalized() VoiceSettings {
	if v.Speed == 0 || math.IsNaN(v.Speed) {
		v.Speed = DefaultVoiceSpeed
	}
	v.Speed = math.Min(MaxVoiceSpeed, math.Max(MinVoiceSpeed, v.Speed))
	v.Tone = ParseVoiceTone(string(v.Tone))
	return v
}
