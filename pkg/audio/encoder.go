package audio

import (
	"fmt"

	"layeh.com/gopus"
)

// Encoder turns one PCM frame into an opus packet.
type Encoder interface {
	Encode(frame []int16) ([]byte, error)
}

type opusEncoder struct {
	enc *gopus.Encoder
}

// NewOpusEncoder creates an opus encoder at Discord's native format.
func NewOpusEncoder() (Encoder, error) {
	enc, err := gopus.NewEncoder(SampleRate, Channels, gopus.Audio)
	if err != nil {
		return nil, fmt.Errorf("create opus encoder: %w", err)
	}

	return &opusEncoder{enc: enc}, nil
}

func (e *opusEncoder) Encode(frame []int16) ([]byte, error) {
	if len(frame) != FrameSamples {
		return nil, fmt.Errorf("expected %d samples per frame, got %d", FrameSamples, len(frame))
	}

	packet, err := e.enc.Encode(frame, FrameSize, MaxOpusFrameBytes)
	if err != nil {
		return nil, fmt.Errorf("opus encode: %w", err)
	}

	return packet, nil
}
