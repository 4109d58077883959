package audio

import (
	"encoding/binary"
)

// LEToPCMInt16 converts raw little-endian bytes to int16 samples. A
// trailing odd byte is dropped.
func LEToPCMInt16(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}

	return out
}

// PCMInt16ToLE converts int16 samples to raw little-endian bytes.
func PCMInt16ToLE(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}

	return out
}

// ApplyGain scales samples in place by gain in [0, 1], clamping to the
// int16 range.
func ApplyGain(samples []int16, gain float64) {
	if gain >= 1 {
		return
	}
	if gain <= 0 {
		for i := range samples {
			samples[i] = 0
		}

		return
	}

	for i, s := range samples {
		v := float64(s) * gain
		switch {
		case v > 32767:
			samples[i] = 32767
		case v < -32768:
			samples[i] = -32768
		default:
			samples[i] = int16(v)
		}
	}
}

// SplitFrames slices interleaved samples into frames of FrameSamples
// each. The final partial frame, if any, is zero-padded to a full
// frame so the encoder always sees 20 ms of audio.
func SplitFrames(samples []int16) [][]int16 {
	if len(samples) == 0 {
		return nil
	}

	n := (len(samples) + FrameSamples - 1) / FrameSamples
	frames := make([][]int16, 0, n)

	for off := 0; off < len(samples); off += FrameSamples {
		end := off + FrameSamples
		if end <= len(samples) {
			frames = append(frames, samples[off:end])

			continue
		}

		padded := make([]int16, FrameSamples)
		copy(padded, samples[off:])
		frames = append(frames, padded)
	}

	return frames
}
