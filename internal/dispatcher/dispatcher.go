// Package dispatcher translates external requests into operations
// against the registry, sessions and the audio fan-out engine. It
// owns input validation and the idempotency rules of each operation;
// a validation failure never mutates state.
package dispatcher

import (
	"context"

	"go.uber.org/zap"

	"github.com/3cgajwdsuykk/discord-multi-manager/internal/apperr"
	"github.com/3cgajwdsuykk/discord-multi-manager/internal/gateway"
	"github.com/3cgajwdsuykk/discord-multi-manager/internal/session"
	"github.com/3cgajwdsuykk/discord-multi-manager/internal/voice"
	"github.com/3cgajwdsuykk/discord-multi-manager/pkg/audio"
)

// messageFetchLimit caps one list-messages fetch.
const messageFetchLimit = 50

// EncoderFactory builds a fresh opus encoder per audio job; encoders
// carry stream state and must not be shared between jobs.
type EncoderFactory func() (audio.Encoder, error)

// Dispatcher routes validated commands to the owning components.
type Dispatcher struct {
	logger     *zap.Logger
	registry   *session.Registry
	engine     *voice.Engine
	cache      *gateway.MessageCache
	newEncoder EncoderFactory
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(
	logger *zap.Logger,
	registry *session.Registry,
	engine *voice.Engine,
	cache *gateway.MessageCache,
	newEncoder EncoderFactory,
) *Dispatcher {
	return &Dispatcher{
		logger:     logger,
		registry:   registry,
		engine:     engine,
		cache:      cache,
		newEncoder: newEncoder,
	}
}

// Connect authenticates a credential and registers the account.
func (d *Dispatcher) Connect(ctx context.Context, req ConnectRequest) (*AccountInfo, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	s, err := d.registry.Register(ctx, req.Token)
	if err != nil {
		return nil, err
	}

	info := accountInfo(s)

	return &info, nil
}

// Disconnect stops the account's audio, tears down its voice link and
// removes the session. Disconnecting an already-disconnected account
// succeeds: teardown is idempotent.
func (d *Dispatcher) Disconnect(ctx context.Context, req DisconnectRequest) error {
	if err := req.validate(); err != nil {
		return err
	}

	// Cancel audio cursors first so every cleanup step has completed
	// by the time this returns.
	d.engine.StopAccount(req.AccountID)
	d.registry.Remove(ctx, req.AccountID)

	return nil
}

// ListAccounts reports every connected account.
func (d *Dispatcher) ListAccounts(ctx context.Context) []AccountInfo {
	sessions := d.registry.ListConnected()

	out := make([]AccountInfo, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, accountInfo(s))
	}

	return out
}

// ListChannels lists a guild's channels through an account's session.
func (d *Dispatcher) ListChannels(ctx context.Context, req ChannelsRequest) ([]gateway.Channel, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	s, err := d.registry.Get(req.AccountID)
	if err != nil {
		return nil, err
	}

	return s.Channels(ctx, req.GuildID)
}

// ListVoiceChannels lists only the voice channels of a guild.
func (d *Dispatcher) ListVoiceChannels(ctx context.Context, req ChannelsRequest) ([]gateway.Channel, error) {
	channels, err := d.ListChannels(ctx, req)
	if err != nil {
		return nil, err
	}

	out := make([]gateway.Channel, 0, len(channels))
	for _, ch := range channels {
		if ch.Kind == gateway.ChannelVoice {
			out = append(out, ch)
		}
	}

	return out, nil
}

// ListMessages fetches recent messages of a channel, serving repeated
// polls from the cache.
func (d *Dispatcher) ListMessages(ctx context.Context, req MessagesRequest) ([]gateway.Message, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	s, err := d.registry.Get(req.AccountID)
	if err != nil {
		return nil, err
	}

	if cached, ok := d.cache.Get(req.ChannelID); ok {
		return cached, nil
	}

	messages, err := s.Messages(ctx, req.ChannelID, messageFetchLimit)
	if err != nil {
		return nil, err
	}
	d.cache.Put(req.ChannelID, messages)

	return messages, nil
}

// SendMessage posts a chat message through an account's session.
func (d *Dispatcher) SendMessage(ctx context.Context, req SendMessageRequest) (*gateway.Message, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	s, err := d.registry.Get(req.AccountID)
	if err != nil {
		return nil, err
	}

	sent, err := s.SendMessage(ctx, req.ChannelID, req.Message)
	if err != nil {
		return nil, err
	}

	// The next poll should observe the new message.
	d.cache.Invalidate(req.ChannelID)

	return sent, nil
}

// JoinVoice links an account to a voice channel. Joining the channel
// the account is already linked to is idempotent; a different channel
// supersedes the current link.
func (d *Dispatcher) JoinVoice(ctx context.Context, req JoinVoiceRequest) error {
	if err := req.validate(); err != nil {
		return err
	}

	s, err := d.registry.Get(req.AccountID)
	if err != nil {
		return err
	}

	_, err = s.JoinVoice(ctx, req.GuildID, req.ChannelID)

	return err
}

// LeaveVoice tears down an account's voice link. Idempotent for an
// account that is not in a voice channel.
func (d *Dispatcher) LeaveVoice(ctx context.Context, req LeaveVoiceRequest) error {
	if err := req.validate(); err != nil {
		return err
	}

	s, err := d.registry.Get(req.AccountID)
	if err != nil {
		return err
	}

	d.engine.StopAccount(req.AccountID)
	s.LeaveVoice(ctx)

	return nil
}

// PlayAudio submits a new audio job to the accounts' voice links. It
// is deliberately not idempotent: every call creates a new job, and a
// target that is already playing rejects the submission instead of
// interleaving streams.
func (d *Dispatcher) PlayAudio(ctx context.Context, req PlayAudioRequest) (*PlayResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	targets := make([]*voice.Link, 0, len(req.targets()))
	for _, accountID := range req.targets() {
		s, err := d.registry.Get(accountID)
		if err != nil {
			return nil, err
		}

		link := s.VoiceLink()
		if link == nil || link.State() != voice.LinkActive {
			return nil, apperr.Newf(apperr.KindVoiceLinkClosed,
				"account %s has no active voice link", accountID)
		}
		targets = append(targets, link)
	}

	enc, err := d.newEncoder()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "create encoder", err)
	}

	src, err := audio.NewSource(req.AudioData, req.volume(), enc)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "decode audio data", err)
	}

	job, err := d.engine.Submit(src, targets)
	if err != nil {
		return nil, err
	}

	return &PlayResult{JobID: job.ID(), Targets: req.targets()}, nil
}

// StopAudio cancels the audio cursors addressed to one account. Other
// cursors in any shared job keep running.
func (d *Dispatcher) StopAudio(ctx context.Context, req StopAudioRequest) error {
	if err := req.validate(); err != nil {
		return err
	}

	if _, err := d.registry.Get(req.AccountID); err != nil {
		return err
	}

	d.engine.StopAccount(req.AccountID)

	return nil
}

func accountInfo(s *session.Session) AccountInfo {
	identity := s.Identity()

	info := AccountInfo{
		ID:            identity.ID,
		Username:      identity.Username,
		Discriminator: identity.Discriminator,
		Avatar:        identity.Avatar,
		State:         s.State().String(),
		Guilds:        s.Guilds(),
	}

	if link := s.VoiceLink(); link != nil && link.State() == voice.LinkActive {
		info.VoiceChannelID = link.ChannelID()
	}

	return info
}
