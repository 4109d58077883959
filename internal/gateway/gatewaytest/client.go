// Package gatewaytest provides an in-memory gateway.Client for tests.
// It records calls, lets tests inject failures and disconnects, and
// implements the voice transport with a frame sink.
package gatewaytest

import (
	"context"
	"sync"
	"time"

	"github.com/3cgajwdsuykk/discord-multi-manager/internal/apperr"
	"github.com/3cgajwdsuykk/discord-multi-manager/internal/gateway"
)

// Client is a fake gateway.Client. The zero value is not usable; use
// NewClient.
type Client struct {
	mu sync.Mutex

	identity gateway.Identity
	guilds   []gateway.Guild
	channels map[string][]gateway.Channel // guildID → channels
	messages map[string][]gateway.Message // channelID → messages
	sent     []SentMessage

	connectCalls int
	closed       bool
	disconnects  chan error

	// Failure injection. Checked once per matching call.
	ConnectErr   error
	SendErr      error
	OpenVoiceErr error

	// ConnectHold, when set, blocks Connect until the channel is
	// closed, letting tests interleave a slow handshake with other
	// operations.
	ConnectHold chan struct{}

	// VoiceDelay stalls OpenVoice, for join-timeout tests.
	VoiceDelay time.Duration

	voiceCalls int
	transports []*VoiceTransport
}

// SentMessage records one SendMessage call.
type SentMessage struct {
	ChannelID string
	Content   string
}

// NewClient creates a fake client for the given identity and guilds.
func NewClient(identity gateway.Identity, guilds ...gateway.Guild) *Client {
	return &Client{
		identity:    identity,
		guilds:      guilds,
		channels:    make(map[string][]gateway.Channel),
		messages:    make(map[string][]gateway.Message),
		disconnects: make(chan error, 4),
	}
}

// SetChannels seeds the channel list for a guild.
func (c *Client) SetChannels(guildID string, channels ...gateway.Channel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channels[guildID] = channels
}

// SetMessages seeds the message history of a channel.
func (c *Client) SetMessages(channelID string, messages ...gateway.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages[channelID] = messages
}

// Sent returns all recorded SendMessage calls.
func (c *Client) Sent() []SentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]SentMessage, len(c.sent))
	copy(out, c.sent)

	return out
}

// ConnectCalls reports how many times Connect ran, including retries.
func (c *Client) ConnectCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.connectCalls
}

// Closed reports whether Close was called.
func (c *Client) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}

// Drop simulates a transport-level disconnect notification.
func (c *Client) Drop(err error) {
	c.disconnects <- err
}

// OpenVoiceCalls reports how many voice handshakes have started,
// including ones still stalled by VoiceDelay.
func (c *Client) OpenVoiceCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.voiceCalls
}

// Transports returns every voice transport handed out so far.
func (c *Client) Transports() []*VoiceTransport {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*VoiceTransport, len(c.transports))
	copy(out, c.transports)

	return out
}

func (c *Client) Connect(ctx context.Context) (*gateway.Identity, []gateway.Guild, error) {
	c.mu.Lock()
	c.connectCalls++
	err := c.ConnectErr
	hold := c.ConnectHold
	c.mu.Unlock()

	if hold != nil {
		<-hold
	}

	if err != nil {
		return nil, nil, err
	}

	identity := c.identity

	return &identity, c.guilds, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.disconnects)
	}

	return nil
}

func (c *Client) Guilds(ctx context.Context) ([]gateway.Guild, error) {
	return c.guilds, nil
}

func (c *Client) Channels(ctx context.Context, guildID string) ([]gateway.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	channels, ok := c.channels[guildID]
	if !ok {
		return nil, apperr.Newf(apperr.KindNotFound, "unknown guild %q", guildID)
	}

	return channels, nil
}

func (c *Client) Messages(ctx context.Context, channelID string, limit int) ([]gateway.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	messages := c.messages[channelID]
	if limit > 0 && len(messages) > limit {
		messages = messages[:limit]
	}

	return messages, nil
}

func (c *Client) SendMessage(ctx context.Context, channelID, content string) (*gateway.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.SendErr != nil {
		return nil, c.SendErr
	}

	c.sent = append(c.sent, SentMessage{ChannelID: channelID, Content: content})

	msg := gateway.Message{
		ID:        "sent",
		Content:   content,
		Timestamp: time.Now().UTC(),
		Author:    gateway.Author{ID: c.identity.ID, Username: c.identity.Username},
	}

	return &msg, nil
}

func (c *Client) OpenVoice(ctx context.Context, guildID, channelID string) (gateway.VoiceTransport, error) {
	c.mu.Lock()
	c.voiceCalls++
	err := c.OpenVoiceErr
	delay := c.VoiceDelay
	c.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, err
	}

	t := &VoiceTransport{GuildID: guildID, ChannelID: channelID}

	c.mu.Lock()
	c.transports = append(c.transports, t)
	c.mu.Unlock()

	return t, nil
}

func (c *Client) Disconnects() <-chan error {
	return c.disconnects
}

// VoiceTransport is a fake voice transport that records frames.
type VoiceTransport struct {
	GuildID   string
	ChannelID string

	mu     sync.Mutex
	frames [][]byte
	closed bool

	// FailAfter makes WriteFrame fail once this many frames have been
	// accepted. Zero means never fail.
	FailAfter int
}

func (t *VoiceTransport) WriteFrame(frame []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return apperr.New(apperr.KindVoiceLinkClosed, "voice transport closed")
	}
	if t.FailAfter > 0 && len(t.frames) >= t.FailAfter {
		return apperr.New(apperr.KindTransport, "simulated transport failure")
	}

	t.frames = append(t.frames, frame)

	return nil
}

func (t *VoiceTransport) Close(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true

	return nil
}

// Frames returns every frame written so far.
func (t *VoiceTransport) Frames() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([][]byte, len(t.frames))
	copy(out, t.frames)

	return out
}

// IsClosed reports whether the transport was closed.
func (t *VoiceTransport) IsClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.closed
}
