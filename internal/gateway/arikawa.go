package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/session"
	"github.com/diamondburned/arikawa/v3/utils/httputil"
	"github.com/diamondburned/arikawa/v3/utils/ws"
	"github.com/diamondburned/arikawa/v3/voice"
	"github.com/diamondburned/arikawa/v3/voice/voicegateway"
	"go.uber.org/zap"

	"github.com/3cgajwdsuykk/discord-multi-manager/internal/apperr"
)

const guildFetchLimit = 200

// NewArikawaDialer returns a Dialer backed by arikawa's session,
// REST client and voice package.
func NewArikawaDialer(logger *zap.Logger) Dialer {
	return func(credential string) Client {
		s := session.New(credential)
		s.AddIntents(gateway.IntentGuilds | gateway.IntentGuildMessages | gateway.IntentGuildVoiceStates)

		return &arikawaClient{
			logger:      logger,
			session:     s,
			disconnects: make(chan error, 1),
		}
	}
}

type arikawaClient struct {
	logger  *zap.Logger
	session *session.Session

	mu          sync.Mutex
	closed      bool
	disconnects chan error
}

func (c *arikawaClient) Connect(ctx context.Context) (*Identity, []Guild, error) {
	// Validate the credential over REST before opening the gateway so
	// a bad token fails fast with a clean auth error.
	me, err := c.session.Me()
	if err != nil {
		return nil, nil, classifyAPIError("authenticate", err)
	}

	c.session.AddHandler(func(ev *ws.CloseEvent) {
		c.notifyDisconnect(fmt.Errorf("gateway closed: code %d: %w", ev.Code, ev.Err))
	})

	if err := c.session.Open(ctx); err != nil {
		return nil, nil, apperr.Wrap(apperr.KindTransport, "open gateway", err)
	}

	guilds, err := c.Guilds(ctx)
	if err != nil {
		_ = c.session.Close()

		return nil, nil, err
	}

	identity := &Identity{
		ID:            me.ID.String(),
		Username:      me.Username,
		Discriminator: me.Discriminator,
		Avatar:        string(me.Avatar),
	}

	return identity, guilds, nil
}

func (c *arikawaClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()

		return nil
	}
	c.closed = true
	close(c.disconnects)
	c.mu.Unlock()

	return c.session.Close()
}

func (c *arikawaClient) Guilds(ctx context.Context) ([]Guild, error) {
	guilds, err := c.session.WithContext(ctx).Guilds(guildFetchLimit)
	if err != nil {
		return nil, classifyAPIError("fetch guilds", err)
	}

	out := make([]Guild, 0, len(guilds))
	for _, g := range guilds {
		out = append(out, Guild{
			ID:   g.ID.String(),
			Name: g.Name,
			Icon: string(g.Icon),
		})
	}

	return out, nil
}

func (c *arikawaClient) Channels(ctx context.Context, guildID string) ([]Channel, error) {
	gid, err := parseSnowflake(guildID, "guild id")
	if err != nil {
		return nil, err
	}

	channels, err := c.session.WithContext(ctx).Channels(discord.GuildID(gid))
	if err != nil {
		return nil, classifyAPIError("fetch channels", err)
	}

	out := make([]Channel, 0, len(channels))
	for _, ch := range channels {
		out = append(out, Channel{
			ID:   ch.ID.String(),
			Name: ch.Name,
			Kind: channelKind(ch.Type),
		})
	}

	return out, nil
}

func (c *arikawaClient) Messages(ctx context.Context, channelID string, limit int) ([]Message, error) {
	cid, err := parseSnowflake(channelID, "channel id")
	if err != nil {
		return nil, err
	}

	messages, err := c.session.WithContext(ctx).Messages(discord.ChannelID(cid), uint(limit))
	if err != nil {
		return nil, classifyAPIError("fetch messages", err)
	}

	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, convertMessage(m))
	}

	return out, nil
}

func (c *arikawaClient) SendMessage(ctx context.Context, channelID, content string) (*Message, error) {
	cid, err := parseSnowflake(channelID, "channel id")
	if err != nil {
		return nil, err
	}

	sent, err := c.session.WithContext(ctx).SendMessage(discord.ChannelID(cid), content)
	if err != nil {
		return nil, classifyAPIError("send message", err)
	}

	msg := convertMessage(*sent)

	return &msg, nil
}

func (c *arikawaClient) OpenVoice(ctx context.Context, guildID, channelID string) (VoiceTransport, error) {
	cid, err := parseSnowflake(channelID, "channel id")
	if err != nil {
		return nil, err
	}

	vs, err := voice.NewSession(c.session)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "create voice session", err)
	}

	if err := vs.JoinChannel(ctx, discord.ChannelID(cid), false, true); err != nil {
		return nil, apperr.Wrap(apperr.KindTransport, "join voice channel", err)
	}

	if err := vs.Speaking(ctx, voicegateway.Microphone); err != nil {
		_ = vs.Leave(ctx)

		return nil, apperr.Wrap(apperr.KindTransport, "set speaking mode", err)
	}

	// arikawa does not fully establish the UDP socket until the first
	// write; an empty write triggers the handshake.
	_, _ = vs.Write(nil)

	c.logger.Debug("voice transport established",
		zap.String("guild_id", guildID),
		zap.String("channel_id", channelID))

	return &arikawaVoiceTransport{session: vs}, nil
}

func (c *arikawaClient) Disconnects() <-chan error {
	return c.disconnects
}

func (c *arikawaClient) notifyDisconnect(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	select {
	case c.disconnects <- err:
	default:
		// A notification is already pending; one is enough to kick
		// off the reconnect loop.
	}
}

type arikawaVoiceTransport struct {
	session *voice.Session

	mu     sync.Mutex
	closed bool
}

func (t *arikawaVoiceTransport) WriteFrame(frame []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return apperr.New(apperr.KindVoiceLinkClosed, "voice transport closed")
	}

	if _, err := t.session.Write(frame); err != nil {
		return apperr.Wrap(apperr.KindTransport, "write audio frame", err)
	}

	return nil
}

func (t *arikawaVoiceTransport) Close(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()

		return nil
	}
	t.closed = true
	t.mu.Unlock()

	return t.session.Leave(ctx)
}

func convertMessage(m discord.Message) Message {
	return Message{
		ID:        m.ID.String(),
		Content:   m.Content,
		Timestamp: m.Timestamp.Time().UTC(),
		Author: Author{
			ID:       m.Author.ID.String(),
			Username: m.Author.Username,
			Avatar:   string(m.Author.Avatar),
		},
	}
}

func channelKind(t discord.ChannelType) ChannelKind {
	switch t {
	case discord.GuildText, discord.GuildAnnouncement:
		return ChannelText
	case discord.GuildVoice, discord.GuildStageVoice:
		return ChannelVoice
	default:
		return ChannelOther
	}
}

func parseSnowflake(s, what string) (discord.Snowflake, error) {
	sf, err := discord.ParseSnowflake(s)
	if err != nil {
		return 0, apperr.Newf(apperr.KindValidation, "invalid %s: %q", what, s)
	}

	return sf, nil
}

func classifyAPIError(op string, err error) error {
	var httpErr *httputil.HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.Status {
		case http.StatusUnauthorized, http.StatusForbidden:
			return apperr.Wrap(apperr.KindAuth, op, err)
		case http.StatusNotFound:
			return apperr.Wrap(apperr.KindNotFound, op, err)
		}
	}

	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return apperr.Wrap(apperr.KindTransport, op, err)
	}

	return apperr.Wrap(apperr.KindInternal, op, err)
}
