package voice_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/3cgajwdsuykk/discord-multi-manager/internal/apperr"
	"github.com/3cgajwdsuykk/discord-multi-manager/internal/gateway/gatewaytest"
	"github.com/3cgajwdsuykk/discord-multi-manager/internal/voice"
)

func TestLink_Lifecycle(t *testing.T) {
	link := voice.NewLink(zaptest.NewLogger(t), "acc1", "g1", "ch1")
	require.Equal(t, voice.LinkJoining, link.State())

	transport := &gatewaytest.VoiceTransport{GuildID: "g1", ChannelID: "ch1"}
	require.NoError(t, link.Activate(transport))
	assert.Equal(t, voice.LinkActive, link.State())

	require.NoError(t, link.WriteFrame([]byte{1, 2, 3}))
	assert.Len(t, transport.Frames(), 1)

	link.Close(context.Background())
	assert.Equal(t, voice.LinkClosed, link.State())
	assert.True(t, transport.IsClosed())

	select {
	case <-link.Done():
	default:
		t.Fatal("Done channel should be closed after Close")
	}
}

func TestLink_ActivateAfterClose(t *testing.T) {
	link := voice.NewLink(zaptest.NewLogger(t), "acc1", "g1", "ch1")
	link.Close(context.Background())

	err := link.Activate(&gatewaytest.VoiceTransport{})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindVoiceLinkClosed))
}

func TestLink_WriteFrameRequiresActive(t *testing.T) {
	link := voice.NewLink(zaptest.NewLogger(t), "acc1", "g1", "ch1")

	err := link.WriteFrame([]byte{1})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindVoiceLinkClosed))
}

func TestLink_CloseIdempotent(t *testing.T) {
	link := voice.NewLink(zaptest.NewLogger(t), "acc1", "g1", "ch1")
	require.NoError(t, link.Activate(&gatewaytest.VoiceTransport{}))

	link.Close(context.Background())
	link.Close(context.Background())
	assert.Equal(t, voice.LinkClosed, link.State())
}
