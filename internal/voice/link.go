// Package voice implements the per-account voice link state machine
// and the audio fan-out engine that streams one source to many links.
package voice

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/3cgajwdsuykk/discord-multi-manager/internal/apperr"
	"github.com/3cgajwdsuykk/discord-multi-manager/internal/gateway"
)

// LinkState is the lifecycle of one voice link instance. States only
// move forward; superseding a link creates a new instance.
type LinkState int32

const (
	LinkJoining LinkState = iota
	LinkActive
	LinkLeaving
	LinkClosed
)

func (s LinkState) String() string {
	switch s {
	case LinkJoining:
		return "joining"
	case LinkActive:
		return "active"
	case LinkLeaving:
		return "leaving"
	default:
		return "closed"
	}
}

// Link tracks one account's membership in one voice channel. It is
// created in Joining, activated once the transport handshake
// completes, and closed exactly once. The account's session owns it;
// audio jobs only borrow it.
type Link struct {
	logger *zap.Logger

	accountID string
	guildID   string
	channelID string

	mu        sync.Mutex
	state     LinkState
	transport gateway.VoiceTransport
	closed    chan struct{}
}

// NewLink creates a link in the Joining state.
func NewLink(logger *zap.Logger, accountID, guildID, channelID string) *Link {
	return &Link{
		logger:    logger,
		accountID: accountID,
		guildID:   guildID,
		channelID: channelID,
		state:     LinkJoining,
		closed:    make(chan struct{}),
	}
}

// AccountID returns the owning account.
func (l *Link) AccountID() string { return l.accountID }

// GuildID returns the target guild.
func (l *Link) GuildID() string { return l.guildID }

// ChannelID returns the target voice channel.
func (l *Link) ChannelID() string { return l.channelID }

// State returns the current lifecycle state.
func (l *Link) State() LinkState {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.state
}

// Done is closed when the link reaches Closed. Audio cursors select
// on it so a torn-down link fails only their own stream.
func (l *Link) Done() <-chan struct{} { return l.closed }

// Activate installs the established transport, moving Joining to
// Active. It fails if the link was closed while the handshake was in
// flight; the caller must then discard the transport.
func (l *Link) Activate(transport gateway.VoiceTransport) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != LinkJoining {
		return apperr.Newf(apperr.KindVoiceLinkClosed, "voice link for account %s is %s", l.accountID, l.state)
	}

	l.state = LinkActive
	l.transport = transport

	l.logger.Info("voice link active",
		zap.String("account_id", l.accountID),
		zap.String("channel_id", l.channelID))

	return nil
}

// WriteFrame sends one opus frame over the link's transport. Only
// valid while Active.
func (l *Link) WriteFrame(frame []byte) error {
	l.mu.Lock()
	state := l.state
	transport := l.transport
	l.mu.Unlock()

	if state != LinkActive {
		return apperr.Newf(apperr.KindVoiceLinkClosed, "voice link for account %s is %s", l.accountID, state)
	}

	return transport.WriteFrame(frame)
}

// Close tears the link down: Leaving, then Closed. Transport teardown
// errors are logged, not returned; the end state is the same either
// way. Safe to call from any state and more than once.
func (l *Link) Close(ctx context.Context) {
	l.mu.Lock()
	if l.state == LinkLeaving || l.state == LinkClosed {
		// Teardown already done or in progress.
		l.mu.Unlock()

		return
	}
	l.state = LinkLeaving
	transport := l.transport
	l.transport = nil
	l.mu.Unlock()

	if transport != nil {
		if err := transport.Close(ctx); err != nil {
			l.logger.Warn("voice transport teardown failed",
				zap.String("account_id", l.accountID),
				zap.String("channel_id", l.channelID),
				zap.Error(err))
		}
	}

	l.mu.Lock()
	l.state = LinkClosed
	close(l.closed)
	l.mu.Unlock()

	l.logger.Info("voice link closed",
		zap.String("account_id", l.accountID),
		zap.String("channel_id", l.channelID))
}
