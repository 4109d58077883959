package audio

import (
	"encoding/base64"
	"fmt"
)

// Source is a fully decoded playback source: a sequence of opus
// frames ready to be written to any number of voice transports.
// Frames are immutable after creation, so concurrent readers need no
// locking; each reader keeps its own frame index.
type Source struct {
	frames [][]byte
}

// NewSource decodes base64 PCM16LE audio (48 kHz stereo), applies the
// gain and encodes 20 ms opus frames.
func NewSource(base64PCM string, gain float64, enc Encoder) (*Source, error) {
	raw, err := base64.StdEncoding.DecodeString(base64PCM)
	if err != nil {
		return nil, fmt.Errorf("decode audio data: %w", err)
	}
	if len(raw) < 2 {
		return nil, fmt.Errorf("audio data too short: %d bytes", len(raw))
	}

	samples := LEToPCMInt16(raw)
	ApplyGain(samples, gain)

	pcmFrames := SplitFrames(samples)
	frames := make([][]byte, 0, len(pcmFrames))
	for i, f := range pcmFrames {
		packet, err := enc.Encode(f)
		if err != nil {
			return nil, fmt.Errorf("encode frame %d: %w", i, err)
		}
		frames = append(frames, packet)
	}

	return &Source{frames: frames}, nil
}

// NumFrames reports the total frame count.
func (s *Source) NumFrames() int { return len(s.frames) }

// Frame returns the opus packet at index i, or nil past the end.
func (s *Source) Frame(i int) []byte {
	if i < 0 || i >= len(s.frames) {
		return nil
	}

	return s.frames[i]
}
