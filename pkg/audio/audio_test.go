package audio_test

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3cgajwdsuykk/discord-multi-manager/pkg/audio"
)

// fakeEncoder returns the frame's first bytes so tests can verify
// which PCM went into which packet without a real opus encoder.
type fakeEncoder struct{}

func (fakeEncoder) Encode(frame []int16) ([]byte, error) {
	return audio.PCMInt16ToLE(frame[:2]), nil
}

func TestPCMRoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 1234}

	got := audio.LEToPCMInt16(audio.PCMInt16ToLE(samples))
	assert.Equal(t, samples, got)
}

func TestApplyGain(t *testing.T) {
	tests := map[string]struct {
		in   []int16
		gain float64
		want []int16
	}{
		"unity gain untouched":  {[]int16{100, -100}, 1.0, []int16{100, -100}},
		"above unity untouched": {[]int16{100, -100}, 1.5, []int16{100, -100}},
		"half gain":             {[]int16{100, -100}, 0.5, []int16{50, -50}},
		"zero gain silences":    {[]int16{100, -100}, 0, []int16{0, 0}},
		"negative silences":     {[]int16{100}, -1, []int16{0}},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			samples := make([]int16, len(tt.in))
			copy(samples, tt.in)
			audio.ApplyGain(samples, tt.gain)
			assert.Equal(t, tt.want, samples)
		})
	}
}

func TestSplitFrames(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		assert.Nil(t, audio.SplitFrames(nil))
	})

	t.Run("exact frames", func(t *testing.T) {
		frames := audio.SplitFrames(make([]int16, audio.FrameSamples*3))
		require.Len(t, frames, 3)
		for _, f := range frames {
			assert.Len(t, f, audio.FrameSamples)
		}
	})

	t.Run("partial final frame is padded", func(t *testing.T) {
		samples := make([]int16, audio.FrameSamples+10)
		for i := range samples {
			samples[i] = 7
		}

		frames := audio.SplitFrames(samples)
		require.Len(t, frames, 2)
		assert.Len(t, frames[1], audio.FrameSamples)
		assert.Equal(t, int16(7), frames[1][9])
		assert.Equal(t, int16(0), frames[1][10], "padding should be silence")
	})
}

func TestNewSource(t *testing.T) {
	pcm := make([]int16, audio.FrameSamples*2)
	for i := range pcm {
		pcm[i] = 1000
	}
	data := base64.StdEncoding.EncodeToString(audio.PCMInt16ToLE(pcm))

	t.Run("frames and gain", func(t *testing.T) {
		src, err := audio.NewSource(data, 0.5, fakeEncoder{})
		require.NoError(t, err)
		require.Equal(t, 2, src.NumFrames())

		// fakeEncoder echoes the first samples; gain halved them.
		first := audio.LEToPCMInt16(src.Frame(0))
		assert.Equal(t, int16(500), first[0])
	})

	t.Run("out of range frame", func(t *testing.T) {
		src, err := audio.NewSource(data, 1, fakeEncoder{})
		require.NoError(t, err)
		assert.Nil(t, src.Frame(2))
		assert.Nil(t, src.Frame(-1))
	})

	t.Run("invalid base64", func(t *testing.T) {
		_, err := audio.NewSource("not-base64!!!", 1, fakeEncoder{})
		assert.Error(t, err)
	})

	t.Run("empty audio", func(t *testing.T) {
		_, err := audio.NewSource("", 1, fakeEncoder{})
		assert.Error(t, err)
	})
}
