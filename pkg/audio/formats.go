package audio

// Format constants for the Discord voice transport.
const (
	// SampleRate is the sample rate Discord expects.
	SampleRate = 48_000 // Hz

	// Channels is interleaved stereo.
	Channels = 2

	// FrameSize is samples per channel in one 20 ms frame.
	FrameSize = 960

	// FrameSamples is interleaved samples per frame.
	FrameSamples = FrameSize * Channels

	// FrameBytes is the size of one frame of 16-bit PCM.
	FrameBytes = FrameSamples * 2

	// MaxOpusFrameBytes bounds the encoder output buffer.
	MaxOpusFrameBytes = 4000
)
