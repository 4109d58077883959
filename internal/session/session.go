// Package session implements the per-account connection state machine
// and the registry that owns all live sessions.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/3cgajwdsuykk/discord-multi-manager/internal/apperr"
	"github.com/3cgajwdsuykk/discord-multi-manager/internal/config"
	"github.com/3cgajwdsuykk/discord-multi-manager/internal/gateway"
	"github.com/3cgajwdsuykk/discord-multi-manager/internal/voice"
)

// State is the session lifecycle.
type State int32

const (
	StateAuthenticating State = iota
	StateConnected
	StateReconnecting
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateAuthenticating:
		return "authenticating"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// reconnectJitter is the randomization applied to each backoff
// interval.
const reconnectJitter = 0.2

// Session is the live, stateful representation of one authenticated
// account. Created only by a successful authenticate; destroyed only
// by explicit disconnect or removal, never silently collected while
// connected.
type Session struct {
	logger     *zap.Logger
	dial       gateway.Dialer
	credential string
	reconnect  config.ReconnectConfig
	voiceCfg   config.VoiceConfig

	// opMu serializes mutating operations addressed to this account:
	// join/leave voice and disconnect never interleave.
	opMu sync.Mutex

	mu         sync.RWMutex
	state      State
	identity   gateway.Identity
	guilds     map[string]gateway.Guild
	generation uint64
	client     gateway.Client
	link       *voice.Link

	// onDefunct is invoked once if the session dies without an
	// explicit disconnect (revoked credential mid-reconnect). The
	// registry uses it to drop its entry.
	onDefunct func()

	ctx         context.Context
	cancel      context.CancelFunc
	watcherDone chan struct{}
}

// newSession dials and authenticates. It returns a Connected session
// with its reconnect watcher running, or an error and nothing else.
func newSession(ctx context.Context, logger *zap.Logger, dial gateway.Dialer, credential string,
	reconnectCfg config.ReconnectConfig, voiceCfg config.VoiceConfig,
) (*Session, error) {
	s := &Session{
		logger:      logger,
		dial:        dial,
		credential:  credential,
		reconnect:   reconnectCfg,
		voiceCfg:    voiceCfg,
		state:       StateAuthenticating,
		guilds:      make(map[string]gateway.Guild),
		watcherDone: make(chan struct{}),
	}

	client := dial(credential)
	identity, guilds, err := client.Connect(ctx)
	if err != nil {
		_ = client.Close()

		return nil, err
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.identity = *identity
	s.client = client
	s.setGuilds(guilds)
	s.setState(StateConnected)

	s.logger = logger.With(zap.String("account_id", identity.ID))
	s.logger.Info("session connected",
		zap.String("username", identity.Username),
		zap.Int("guilds", len(guilds)))

	go s.watch(client)

	return s, nil
}

// AccountID returns the account identifier.
func (s *Session) AccountID() string { return s.identity.ID }

// Identity returns the authenticated account identity.
func (s *Session) Identity() gateway.Identity { return s.identity }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state
}

// Generation returns the reconnect generation counter.
func (s *Session) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.generation
}

// Guilds returns a snapshot of the guilds visible to the account.
func (s *Session) Guilds() []gateway.Guild {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]gateway.Guild, 0, len(s.guilds))
	for _, g := range s.guilds {
		out = append(out, g)
	}

	return out
}

// VoiceLink returns the active voice link, or nil.
func (s *Session) VoiceLink() *voice.Link {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.link
}

// connectedClient returns the client and current generation, failing
// unless the session is Connected.
func (s *Session) connectedClient() (gateway.Client, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state != StateConnected {
		return nil, 0, apperr.Newf(apperr.KindTransport,
			"session for account %s is %s", s.identity.ID, s.state)
	}

	return s.client, s.generation, nil
}

// Channels lists a guild's channels through the account's connection.
func (s *Session) Channels(ctx context.Context, guildID string) ([]gateway.Channel, error) {
	client, _, err := s.connectedClient()
	if err != nil {
		return nil, err
	}

	return client.Channels(ctx, guildID)
}

// Messages fetches recent messages of a channel.
func (s *Session) Messages(ctx context.Context, channelID string, limit int) ([]gateway.Message, error) {
	client, _, err := s.connectedClient()
	if err != nil {
		return nil, err
	}

	return client.Messages(ctx, channelID, limit)
}

// SendMessage posts a chat message through the account's connection.
func (s *Session) SendMessage(ctx context.Context, channelID, content string) (*gateway.Message, error) {
	client, _, err := s.connectedClient()
	if err != nil {
		return nil, err
	}

	return client.SendMessage(ctx, channelID, content)
}

// JoinVoice establishes a voice link to the given channel. Joining
// the channel the session is already linked to is idempotent. Joining
// a different channel supersedes the current link. The handshake is
// bounded by the configured join timeout.
func (s *Session) JoinVoice(ctx context.Context, guildID, channelID string) (*voice.Link, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	client, gen, err := s.connectedClient()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.link != nil && s.link.State() == voice.LinkActive && s.link.ChannelID() == channelID {
		link := s.link
		s.mu.Unlock()

		return link, nil
	}
	previous := s.link
	link := voice.NewLink(s.logger, s.identity.ID, guildID, channelID)
	s.link = link
	s.mu.Unlock()

	if previous != nil {
		previous.Close(ctx)
	}

	joinCtx, cancel := context.WithTimeout(s.ctx, s.voiceCfg.JoinTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	transport, err := client.OpenVoice(joinCtx, guildID, channelID)
	if err != nil {
		link.Close(ctx)
		s.clearLink(link)

		// Only the handshake deadline itself is a timeout; the caller
		// giving up or an explicit disconnect also cancels joinCtx.
		if errors.Is(joinCtx.Err(), context.DeadlineExceeded) {
			return nil, apperr.Newf(apperr.KindVoiceTimeout,
				"voice join for account %s channel %s timed out", s.identity.ID, channelID)
		}
		if joinCtx.Err() != nil {
			return nil, apperr.Wrap(apperr.KindTransport, "voice join canceled", err)
		}

		return nil, err
	}

	// A reconnect may have completed while the handshake was in
	// flight; results captured under an older generation are
	// discarded, never applied.
	if s.Generation() != gen {
		_ = transport.Close(ctx)
		link.Close(ctx)
		s.clearLink(link)

		return nil, apperr.Newf(apperr.KindVoiceLinkClosed,
			"session for account %s reconnected during voice join", s.identity.ID)
	}

	if err := link.Activate(transport); err != nil {
		_ = transport.Close(ctx)
		s.clearLink(link)

		return nil, err
	}

	return link, nil
}

// LeaveVoice tears down the active voice link. Idempotent.
func (s *Session) LeaveVoice(ctx context.Context) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	link := s.link
	s.link = nil
	s.mu.Unlock()

	if link != nil {
		link.Close(ctx)
	}
}

// Disconnect cancels any pending reconnect, tears down the voice link
// and closes the connection. It does not return while cleanup is
// still pending. Idempotent.
func (s *Session) Disconnect(ctx context.Context) {
	// Cancel first so a watcher stuck in backoff or an in-flight
	// voice handshake unblocks before we take the operation lock.
	s.cancel()

	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.state == StateDisconnected {
		s.mu.Unlock()

		return
	}
	s.state = StateDisconnected
	link := s.link
	s.link = nil
	client := s.client
	s.client = nil
	s.mu.Unlock()

	<-s.watcherDone

	if link != nil {
		link.Close(ctx)
	}
	if client != nil {
		_ = client.Close()
	}

	s.logger.Info("session disconnected")
}

// watch absorbs transport-level disconnects and runs the reconnect
// loop until the session is explicitly disconnected.
func (s *Session) watch(client gateway.Client) {
	defer close(s.watcherDone)

	for {
		select {
		case <-s.ctx.Done():
			return
		case cause, ok := <-client.Disconnects():
			if !ok {
				// Client closed by Disconnect.
				return
			}

			s.logger.Warn("transport disconnected", zap.Error(cause))

			next, err := s.runReconnect(client)
			if err != nil {
				return
			}
			client = next
		}
	}
}

// runReconnect retries authentication with exponential backoff until
// it succeeds, the session is disconnected, or the credential is
// rejected outright.
func (s *Session) runReconnect(old gateway.Client) (gateway.Client, error) {
	s.setState(StateReconnecting)

	// Voice membership does not survive a reconnect; the operator
	// must rejoin explicitly.
	s.mu.Lock()
	link := s.link
	s.link = nil
	s.mu.Unlock()
	if link != nil {
		link.Close(s.ctx)
	}
	_ = old.Close()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.reconnect.BaseInterval
	b.MaxInterval = s.reconnect.MaxInterval
	b.RandomizationFactor = reconnectJitter

	type connected struct {
		client gateway.Client
		guilds []gateway.Guild
	}

	result, err := backoff.Retry(s.ctx, func() (connected, error) {
		client := s.dial(s.credential)

		_, guilds, err := client.Connect(s.ctx)
		if err != nil {
			_ = client.Close()

			if apperr.IsKind(err, apperr.KindAuth) {
				// The credential was revoked; retrying cannot help.
				return connected{}, backoff.Permanent(err)
			}

			s.logger.Warn("reconnect attempt failed", zap.Error(err))

			return connected{}, err
		}

		return connected{client: client, guilds: guilds}, nil
	}, backoff.WithBackOff(b), backoff.WithMaxElapsedTime(0))
	if err != nil {
		s.fail(err)

		return nil, err
	}

	s.mu.Lock()
	// An explicit disconnect may have landed while the winning attempt
	// was in flight. Disconnected is final: discard the fresh
	// connection instead of swapping it in.
	if s.ctx.Err() != nil || s.state == StateDisconnected {
		s.mu.Unlock()
		_ = result.client.Close()

		return nil, apperr.Newf(apperr.KindTransport,
			"session for account %s disconnected during reconnect", s.identity.ID)
	}
	s.client = result.client
	s.generation++
	s.state = StateConnected
	gen := s.generation
	s.mu.Unlock()
	s.setGuilds(result.guilds)

	s.logger.Info("session reconnected", zap.Uint64("generation", gen))

	return result.client, nil
}

// fail marks the session dead after an unrecoverable reconnect error
// and notifies the registry. Explicit disconnects do not go through
// here.
func (s *Session) fail(cause error) {
	s.mu.Lock()
	alreadyDead := s.state == StateDisconnected
	s.state = StateDisconnected
	client := s.client
	s.client = nil
	onDefunct := s.onDefunct
	s.mu.Unlock()

	if alreadyDead {
		return
	}

	if client != nil {
		_ = client.Close()
	}

	if s.ctx.Err() == nil {
		s.logger.Error("session terminated", zap.Error(cause))
	}

	if onDefunct != nil {
		onDefunct()
	}
}

func (s *Session) setOnDefunct(fn func()) {
	s.mu.Lock()
	s.onDefunct = fn
	s.mu.Unlock()
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) setGuilds(guilds []gateway.Guild) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.guilds = make(map[string]gateway.Guild, len(guilds))
	for _, g := range guilds {
		s.guilds[g.ID] = g
	}
}

// clearLink drops the stored link if it is still the given one; a
// concurrent join may already have replaced it.
func (s *Session) clearLink(link *voice.Link) {
	s.mu.Lock()
	if s.link == link {
		s.link = nil
	}
	s.mu.Unlock()
}
