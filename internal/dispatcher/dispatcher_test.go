package dispatcher_test

import (
	"context"
	"encoding/base64"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/3cgajwdsuykk/discord-multi-manager/internal/apperr"
	"github.com/3cgajwdsuykk/discord-multi-manager/internal/config"
	"github.com/3cgajwdsuykk/discord-multi-manager/internal/dispatcher"
	"github.com/3cgajwdsuykk/discord-multi-manager/internal/gateway"
	"github.com/3cgajwdsuykk/discord-multi-manager/internal/gateway/gatewaytest"
	"github.com/3cgajwdsuykk/discord-multi-manager/internal/session"
	"github.com/3cgajwdsuykk/discord-multi-manager/internal/voice"
	"github.com/3cgajwdsuykk/discord-multi-manager/pkg/audio"
)

// fakeEncoder passes PCM frames through untouched so tests can count
// frames without a real opus codec.
type fakeEncoder struct{}

func (fakeEncoder) Encode(frame []int16) ([]byte, error) {
	return audio.PCMInt16ToLE(frame[:4]), nil
}

// harness wires a dispatcher over fake gateway clients.
type harness struct {
	dispatcher *dispatcher.Dispatcher
	registry   *session.Registry
	engine     *voice.Engine

	mu      sync.Mutex
	clients map[string]*gatewaytest.Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{clients: make(map[string]*gatewaytest.Client)}

	cfg := &config.Config{
		Reconnect: config.ReconnectConfig{
			BaseInterval: 5 * time.Millisecond,
			MaxInterval:  20 * time.Millisecond,
		},
		Voice: config.VoiceConfig{
			JoinTimeout:   time.Second,
			FrameDuration: time.Millisecond,
		},
		MessageCacheSize: 16,
	}

	logger := zaptest.NewLogger(t)
	h.registry = session.NewRegistry(logger, h.dial, cfg)
	h.engine = voice.NewEngine(logger, cfg.Voice.FrameDuration)
	cache := gateway.NewMessageCache(cfg.MessageCacheSize)
	h.dispatcher = dispatcher.NewDispatcher(logger, h.registry, h.engine, cache,
		func() (audio.Encoder, error) { return fakeEncoder{}, nil })

	t.Cleanup(func() { h.registry.Close(context.Background()) })

	return h
}

// addAccount programs the dialer so the given token authenticates as
// the given account.
func (h *harness) addAccount(token, accountID string, guilds ...gateway.Guild) *gatewaytest.Client {
	client := gatewaytest.NewClient(gateway.Identity{ID: accountID, Username: "user-" + accountID}, guilds...)

	h.mu.Lock()
	h.clients[token] = client
	h.mu.Unlock()

	return client
}

func (h *harness) dial(credential string) gateway.Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[credential]
	if !ok {
		panic("no fake client programmed for credential " + credential)
	}

	return client
}

func (h *harness) connect(t *testing.T, token string) *dispatcher.AccountInfo {
	t.Helper()

	info, err := h.dispatcher.Connect(context.Background(), dispatcher.ConnectRequest{Token: token})
	require.NoError(t, err)

	return info
}

// pcmData encodes the given number of samples as a base64 request
// payload.
func pcmData(samples int) string {
	pcm := make([]int16, samples)
	for i := range pcm {
		pcm[i] = int16(i%2000 - 1000)
	}

	return base64.StdEncoding.EncodeToString(audio.PCMInt16ToLE(pcm))
}

func waitJobDone(t *testing.T, job *voice.Job) {
	t.Helper()

	select {
	case <-job.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("audio job did not finish in time")
	}
}

func TestDispatcher_Connect(t *testing.T) {
	h := newHarness(t)
	h.addAccount("tok1", "acc1",
		gateway.Guild{ID: "g1", Name: "First"},
		gateway.Guild{ID: "g2", Name: "Second"})

	info := h.connect(t, "tok1")
	assert.Equal(t, "acc1", info.ID)
	assert.Equal(t, "connected", info.State)
	assert.Len(t, info.Guilds, 2)
	assert.Empty(t, info.VoiceChannelID)

	accounts := h.dispatcher.ListAccounts(context.Background())
	require.Len(t, accounts, 1)
	assert.Equal(t, "acc1", accounts[0].ID)
}

func TestDispatcher_ConnectValidation(t *testing.T) {
	h := newHarness(t)

	_, err := h.dispatcher.Connect(context.Background(), dispatcher.ConnectRequest{})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	assert.Empty(t, h.dispatcher.ListAccounts(context.Background()))
}

func TestDispatcher_DisconnectIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.addAccount("tok1", "acc1")
	h.connect(t, "tok1")

	req := dispatcher.DisconnectRequest{AccountID: "acc1"}
	require.NoError(t, h.dispatcher.Disconnect(context.Background(), req))
	require.NoError(t, h.dispatcher.Disconnect(context.Background(), req))

	// Disconnecting a never-seen account also succeeds.
	require.NoError(t, h.dispatcher.Disconnect(context.Background(),
		dispatcher.DisconnectRequest{AccountID: "ghost"}))
}

func TestDispatcher_ListChannels(t *testing.T) {
	h := newHarness(t)
	client := h.addAccount("tok1", "acc1", gateway.Guild{ID: "g1", Name: "First"})
	client.SetChannels("g1",
		gateway.Channel{ID: "c1", Name: "general", Kind: gateway.ChannelText},
		gateway.Channel{ID: "c2", Name: "Lounge", Kind: gateway.ChannelVoice},
		gateway.Channel{ID: "c3", Name: "rules", Kind: gateway.ChannelText},
	)
	h.connect(t, "tok1")

	req := dispatcher.ChannelsRequest{GuildID: "g1", AccountID: "acc1"}

	channels, err := h.dispatcher.ListChannels(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, channels, 3)

	voiceOnly, err := h.dispatcher.ListVoiceChannels(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, voiceOnly, 1)
	assert.Equal(t, "c2", voiceOnly[0].ID)

	_, err = h.dispatcher.ListChannels(context.Background(),
		dispatcher.ChannelsRequest{GuildID: "g1", AccountID: "ghost"})
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	_, err = h.dispatcher.ListChannels(context.Background(),
		dispatcher.ChannelsRequest{AccountID: "acc1"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestDispatcher_Messages(t *testing.T) {
	h := newHarness(t)
	client := h.addAccount("tok1", "acc1")
	client.SetMessages("c1", gateway.Message{ID: "m1", Content: "hello"})
	h.connect(t, "tok1")

	req := dispatcher.MessagesRequest{ChannelID: "c1", AccountID: "acc1"}

	messages, err := h.dispatcher.ListMessages(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	// A second poll is served from the cache and does not observe the
	// reseeded history.
	client.SetMessages("c1",
		gateway.Message{ID: "m1", Content: "hello"},
		gateway.Message{ID: "m2", Content: "again"})
	messages, err = h.dispatcher.ListMessages(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, messages, 1)

	// Sending invalidates the cache, so the next poll refetches.
	_, err = h.dispatcher.SendMessage(context.Background(), dispatcher.SendMessageRequest{
		ChannelID: "c1", AccountID: "acc1", Message: "third",
	})
	require.NoError(t, err)
	require.Len(t, client.Sent(), 1)

	messages, err = h.dispatcher.ListMessages(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, messages, 2)
}

func TestDispatcher_SendMessageValidation(t *testing.T) {
	h := newHarness(t)
	client := h.addAccount("tok1", "acc1")
	h.connect(t, "tok1")

	_, err := h.dispatcher.SendMessage(context.Background(), dispatcher.SendMessageRequest{
		ChannelID: "c1", AccountID: "acc1",
	})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	assert.Empty(t, client.Sent())
}

func TestDispatcher_VoiceLifecycle(t *testing.T) {
	h := newHarness(t)
	client := h.addAccount("tok1", "acc1", gateway.Guild{ID: "g1", Name: "First"})
	h.connect(t, "tok1")

	join := dispatcher.JoinVoiceRequest{ChannelID: "vc1", AccountID: "acc1", GuildID: "g1"}
	require.NoError(t, h.dispatcher.JoinVoice(context.Background(), join))

	accounts := h.dispatcher.ListAccounts(context.Background())
	require.Len(t, accounts, 1)
	assert.Equal(t, "vc1", accounts[0].VoiceChannelID)

	// Rejoining the same channel does not open a second transport.
	require.NoError(t, h.dispatcher.JoinVoice(context.Background(), join))
	assert.Len(t, client.Transports(), 1)

	require.NoError(t, h.dispatcher.LeaveVoice(context.Background(),
		dispatcher.LeaveVoiceRequest{AccountID: "acc1"}))
	assert.True(t, client.Transports()[0].IsClosed())

	// Leaving while not in voice succeeds.
	require.NoError(t, h.dispatcher.LeaveVoice(context.Background(),
		dispatcher.LeaveVoiceRequest{AccountID: "acc1"}))

	err := h.dispatcher.LeaveVoice(context.Background(),
		dispatcher.LeaveVoiceRequest{AccountID: "ghost"})
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestDispatcher_PlayAudio(t *testing.T) {
	h := newHarness(t)
	client := h.addAccount("tok1", "acc1", gateway.Guild{ID: "g1", Name: "First"})
	h.connect(t, "tok1")

	require.NoError(t, h.dispatcher.JoinVoice(context.Background(),
		dispatcher.JoinVoiceRequest{ChannelID: "vc1", AccountID: "acc1", GuildID: "g1"}))

	result, err := h.dispatcher.PlayAudio(context.Background(), dispatcher.PlayAudioRequest{
		AccountID: "acc1",
		AudioData: pcmData(3 * audio.FrameSamples),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.JobID)
	assert.Equal(t, []string{"acc1"}, result.Targets)

	job, err := h.engine.Job(result.JobID)
	require.NoError(t, err)
	waitJobDone(t, job)

	assert.Equal(t, voice.CursorSucceeded, job.Cursor("acc1").State())
	assert.Len(t, client.Transports()[0].Frames(), 3)
}

func TestDispatcher_PlayAudioFanOut(t *testing.T) {
	h := newHarness(t)
	clientA := h.addAccount("tokA", "accA", gateway.Guild{ID: "g1", Name: "First"})
	clientB := h.addAccount("tokB", "accB", gateway.Guild{ID: "g1", Name: "First"})
	h.connect(t, "tokA")
	h.connect(t, "tokB")

	for _, id := range []string{"accA", "accB"} {
		require.NoError(t, h.dispatcher.JoinVoice(context.Background(),
			dispatcher.JoinVoiceRequest{ChannelID: "vc1", AccountID: id, GuildID: "g1"}))
	}

	result, err := h.dispatcher.PlayAudio(context.Background(), dispatcher.PlayAudioRequest{
		AccountID:  "accA",
		AccountIDs: []string{"accB", "accA"},
		AudioData:  pcmData(2 * audio.FrameSamples),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"accA", "accB"}, result.Targets)

	job, err := h.engine.Job(result.JobID)
	require.NoError(t, err)
	waitJobDone(t, job)

	assert.Len(t, clientA.Transports()[0].Frames(), 2)
	assert.Len(t, clientB.Transports()[0].Frames(), 2)
}

func TestDispatcher_PlayAudioRejections(t *testing.T) {
	h := newHarness(t)
	h.addAccount("tok1", "acc1", gateway.Guild{ID: "g1", Name: "First"})
	h.connect(t, "tok1")

	ctx := context.Background()
	data := pcmData(audio.FrameSamples)

	t.Run("no active voice link", func(t *testing.T) {
		_, err := h.dispatcher.PlayAudio(ctx, dispatcher.PlayAudioRequest{
			AccountID: "acc1", AudioData: data,
		})
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.KindVoiceLinkClosed))
	})

	t.Run("volume out of range", func(t *testing.T) {
		volume := 1.5
		_, err := h.dispatcher.PlayAudio(ctx, dispatcher.PlayAudioRequest{
			AccountID: "acc1", AudioData: data, Volume: &volume,
		})
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	})

	t.Run("missing audio data", func(t *testing.T) {
		_, err := h.dispatcher.PlayAudio(ctx, dispatcher.PlayAudioRequest{AccountID: "acc1"})
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	})

	t.Run("unknown account", func(t *testing.T) {
		_, err := h.dispatcher.PlayAudio(ctx, dispatcher.PlayAudioRequest{
			AccountID: "ghost", AudioData: data,
		})
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	})
}

func TestDispatcher_StopAudio(t *testing.T) {
	h := newHarness(t)
	h.addAccount("tokA", "accA", gateway.Guild{ID: "g1", Name: "First"})
	h.addAccount("tokB", "accB", gateway.Guild{ID: "g1", Name: "First"})
	h.connect(t, "tokA")
	h.connect(t, "tokB")

	ctx := context.Background()
	for _, id := range []string{"accA", "accB"} {
		require.NoError(t, h.dispatcher.JoinVoice(ctx,
			dispatcher.JoinVoiceRequest{ChannelID: "vc1", AccountID: id, GuildID: "g1"}))
	}

	// Long enough that the job is still running when we stop accA.
	result, err := h.dispatcher.PlayAudio(ctx, dispatcher.PlayAudioRequest{
		AccountID:  "accA",
		AccountIDs: []string{"accB"},
		AudioData:  pcmData(500 * audio.FrameSamples),
	})
	require.NoError(t, err)

	job, err := h.engine.Job(result.JobID)
	require.NoError(t, err)

	require.NoError(t, h.dispatcher.StopAudio(ctx, dispatcher.StopAudioRequest{AccountID: "accA"}))
	assert.Equal(t, voice.CursorStopped, job.Cursor("accA").State())

	// accB's cursor keeps streaming the shared job.
	assert.NotEqual(t, voice.CursorStopped, job.Cursor("accB").State())

	waitJobDone(t, job)
	assert.Equal(t, voice.CursorSucceeded, job.Cursor("accB").State())

	err = h.dispatcher.StopAudio(ctx, dispatcher.StopAudioRequest{AccountID: "ghost"})
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestDispatcher_PlayAudioBusyTarget(t *testing.T) {
	h := newHarness(t)
	h.addAccount("tok1", "acc1", gateway.Guild{ID: "g1", Name: "First"})
	h.connect(t, "tok1")

	ctx := context.Background()
	require.NoError(t, h.dispatcher.JoinVoice(ctx,
		dispatcher.JoinVoiceRequest{ChannelID: "vc1", AccountID: "acc1", GuildID: "g1"}))

	first, err := h.dispatcher.PlayAudio(ctx, dispatcher.PlayAudioRequest{
		AccountID: "acc1",
		AudioData: pcmData(500 * audio.FrameSamples),
	})
	require.NoError(t, err)

	_, err = h.dispatcher.PlayAudio(ctx, dispatcher.PlayAudioRequest{
		AccountID: "acc1",
		AudioData: pcmData(audio.FrameSamples),
	})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindTargetBusy))

	require.NoError(t, h.dispatcher.StopAudio(ctx, dispatcher.StopAudioRequest{AccountID: "acc1"}))

	job, err := h.engine.Job(first.JobID)
	require.NoError(t, err)
	waitJobDone(t, job)

	// The target frees up once its cursor stops.
	_, err = h.dispatcher.PlayAudio(ctx, dispatcher.PlayAudioRequest{
		AccountID: "acc1",
		AudioData: pcmData(audio.FrameSamples),
	})
	require.NoError(t, err)
}
