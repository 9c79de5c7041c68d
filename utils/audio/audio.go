package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"echo/core"

	"github.com/zaf/g711"
)

// TelephonySampleRate is the G.711 sample rate.
const TelephonySampleRate = 8000

// ULawBytesToPCM converts µ-law bytes to 16-bit little-endian PCM.
func ULawBytesToPCM(uBytes []byte) []byte {
	return g711.DecodeUlaw(uBytes)
}

// ALawBytesToPCM converts A-law bytes to 16-bit little-endian PCM.
func ALawBytesToPCM(aBytes []byte) []byte {
	return g711.DecodeAlaw(aBytes)
}

// PCMBytesToWavBytes wraps 16-bit PCM in a canonical 44-byte RIFF header.
func PCMBytesToWavBytes(pcm []byte, numChannels, sampleRate int) ([]byte, error) {
	if err := ValidatePCMData(pcm, numChannels); err != nil {
		return nil, err
	}
	if numChannels > 2 {
		return nil, errors.New("only mono (1) or stereo (2) channels supported")
	}
	if sampleRate <= 0 {
		return nil, errors.New("sample rate must be positive")
	}

	const (
		bitsPerSample  = 16
		audioFormatPCM = 1
		subchunk1Size  = 16
	)
	blockAlign := numChannels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign
	dataSize := len(pcm)

	buf := bytes.NewBuffer(make([]byte, 0, 44+dataSize))
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(subchunk1Size))
	binary.Write(buf, binary.LittleEndian, uint16(audioFormatPCM))
	binary.Write(buf, binary.LittleEndian, uint16(numChannels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataSize))
	buf.Write(pcm)
	return buf.Bytes(), nil
}

// ValidatePCMData validates PCM byte array for basic integrity
func ValidatePCMData(pcm []byte, numChannels int) error {
	if len(pcm) == 0 {
		return errors.New("PCM data is empty")
	}
	if len(pcm)%2 != 0 {
		return errors.New("PCM data must have even length (16-bit samples)")
	}
	if numChannels <= 0 {
		return errors.New("invalid number of channels")
	}
	if len(pcm)%(2*numChannels) != 0 {
		return errors.New("PCM data length doesn't match channel count")
	}
	return nil
}

// PCMDurationSeconds returns the playback length of 16-bit PCM.
func PCMDurationSeconds(pcm []byte, numChannels, sampleRate int) (float64, error) {
	if err := ValidatePCMData(pcm, numChannels); err != nil {
		return 0, err
	}
	if sampleRate <= 0 {
		return 0, errors.New("invalid sample rate")
	}
	frames := len(pcm) / 2 / numChannels
	return float64(frames) / float64(sampleRate), nil
}

// StripWAVHeaderIfPresent returns the "data" chunk when input starts with a
// RIFF/WAVE header and the input unchanged otherwise.
func StripWAVHeaderIfPresent(chunk []byte) ([]byte, error) {
	if len(chunk) < 12 {
		return chunk, nil
	}
	if !bytes.HasPrefix(chunk, []byte("RIFF")) || !bytes.Equal(chunk[8:12], []byte("WAVE")) {
		return chunk, nil
	}

	i := 12
	for i+8 <= len(chunk) {
		chunkID := string(chunk[i : i+4])
		chunkSize := binary.LittleEndian.Uint32(chunk[i+4 : i+8])
		next := i + 8 + int(chunkSize)

		if chunkID == "data" {
			if next > len(chunk) {
				return nil, errors.New("invalid WAV: data chunk exceeds buffer length")
			}
			return chunk[i+8 : next], nil
		}
		// chunks are padded to an even boundary
		if chunkSize%2 != 0 {
			next++
		}
		if next > len(chunk) {
			break
		}
		i = next
	}
	return nil, errors.New("invalid WAV: data chunk not found")
}

// TelephonyToWAV decodes G.711 µ-law or A-law uploads into 8 kHz mono PCM WAV.
// Container formats are returned unchanged.
func TelephonyToWAV(in core.AudioInput) (core.AudioInput, error) {
	var decode func([]byte) []byte
	switch in.Encoding() {
	case core.ULAW:
		decode = ULawBytesToPCM
	case core.ALAW:
		decode = ALawBytesToPCM
	default:
		return in, nil
	}

	payload, err := StripWAVHeaderIfPresent(in.Data)
	if err != nil {
		return core.AudioInput{}, fmt.Errorf("audio: %w", err)
	}
	wav, err := PCMBytesToWavBytes(decode(payload), 1, TelephonySampleRate)
	if err != nil {
		return core.AudioInput{}, fmt.Errorf("audio: %w", err)
	}
	name := in.FileName
	if name == "" {
		name = "audio"
	}
	name = strings.TrimSuffix(name, ".ulaw")
	name = strings.TrimSuffix(name, ".alaw")
	if !strings.HasSuffix(name, ".wav") {
		name += ".wav"
	}
	return core.AudioInput{Data: wav, MimeType: core.MimeTypeWAV, FileName: name}, nil
}
