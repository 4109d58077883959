// Package gateway abstracts the Discord real-time protocol client
// behind narrow interfaces. The session and voice layers consume this
// capability and never touch the wire library directly, which keeps
// them testable against the in-memory fake in gatewaytest.
package gateway

import "context"

// Client is one account's connection to the protocol endpoint. A
// Client is single-use: after Close it cannot be reopened, the owner
// dials a fresh one instead.
type Client interface {
	// Connect authenticates and opens the real-time connection. On
	// success it returns the account identity and the guilds visible
	// to it. A rejected credential yields an apperr.KindAuth error.
	Connect(ctx context.Context) (*Identity, []Guild, error)

	// Close tears down the connection. Idempotent.
	Close() error

	// Guilds fetches the current guild list. Used to refresh the
	// session's guild cache after a reconnect.
	Guilds(ctx context.Context) ([]Guild, error)

	// Channels lists the channels of a guild.
	Channels(ctx context.Context, guildID string) ([]Channel, error)

	// Messages fetches up to limit recent messages of a channel,
	// newest first.
	Messages(ctx context.Context, channelID string, limit int) ([]Message, error)

	// SendMessage posts a chat message.
	SendMessage(ctx context.Context, channelID, content string) (*Message, error)

	// OpenVoice performs the voice handshake for a channel and
	// returns the established transport.
	OpenVoice(ctx context.Context, guildID, channelID string) (VoiceTransport, error)

	// Disconnects delivers transport-level disconnect notifications.
	// The channel is closed when the client is closed.
	Disconnects() <-chan error
}

// VoiceTransport is an established voice connection able to carry
// opus frames.
type VoiceTransport interface {
	// WriteFrame sends one opus frame.
	WriteFrame(frame []byte) error

	// Close leaves the voice channel. Idempotent, best effort.
	Close(ctx context.Context) error
}

// Dialer creates a Client for a credential. The production dialer
// builds an arikawa-backed client; tests substitute a fake.
type Dialer func(credential string) Client
