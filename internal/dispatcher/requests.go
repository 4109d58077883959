package dispatcher

import (
	"github.com/3cgajwdsuykk/discord-multi-manager/internal/apperr"
	"github.com/3cgajwdsuykk/discord-multi-manager/internal/gateway"
)

// ConnectRequest authenticates a new account.
type ConnectRequest struct {
	Token string `json:"token"`
}

func (r ConnectRequest) validate() error {
	if r.Token == "" {
		return apperr.New(apperr.KindValidation, "token is required")
	}

	return nil
}

// DisconnectRequest removes an account.
type DisconnectRequest struct {
	AccountID string `json:"accountId"`
}

func (r DisconnectRequest) validate() error {
	return requireAccountID(r.AccountID)
}

// ChannelsRequest lists channels of a guild.
type ChannelsRequest struct {
	GuildID   string `json:"guildId"`
	AccountID string `json:"accountId"`
}

func (r ChannelsRequest) validate() error {
	if err := requireAccountID(r.AccountID); err != nil {
		return err
	}
	if r.GuildID == "" {
		return apperr.New(apperr.KindValidation, "guildId is required")
	}

	return nil
}

// MessagesRequest lists recent messages of a channel.
type MessagesRequest struct {
	ChannelID string `json:"channelId"`
	AccountID string `json:"accountId"`
}

func (r MessagesRequest) validate() error {
	if err := requireAccountID(r.AccountID); err != nil {
		return err
	}

	return requireChannelID(r.ChannelID)
}

// SendMessageRequest posts a chat message.
type SendMessageRequest struct {
	ChannelID string `json:"channelId"`
	AccountID string `json:"accountId"`
	Message   string `json:"message"`
}

func (r SendMessageRequest) validate() error {
	if err := requireAccountID(r.AccountID); err != nil {
		return err
	}
	if err := requireChannelID(r.ChannelID); err != nil {
		return err
	}
	if r.Message == "" {
		return apperr.New(apperr.KindValidation, "message is required")
	}

	return nil
}

// JoinVoiceRequest links an account to a voice channel. GuildID is
// optional; the channel implies it on the wire.
type JoinVoiceRequest struct {
	ChannelID string `json:"channelId"`
	AccountID string `json:"accountId"`
	GuildID   string `json:"guildId,omitempty"`
}

func (r JoinVoiceRequest) validate() error {
	if err := requireAccountID(r.AccountID); err != nil {
		return err
	}

	return requireChannelID(r.ChannelID)
}

// LeaveVoiceRequest unlinks an account from voice.
type LeaveVoiceRequest struct {
	AccountID string `json:"accountId"`
}

func (r LeaveVoiceRequest) validate() error {
	return requireAccountID(r.AccountID)
}

// PlayAudioRequest submits audio playback. AccountIDs fans the same
// job out to additional accounts; the set of targets is AccountID
// plus AccountIDs, deduplicated.
type PlayAudioRequest struct {
	AccountID  string   `json:"accountId"`
	AccountIDs []string `json:"accountIds,omitempty"`
	AudioData  string   `json:"audioData"`
	Volume     *float64 `json:"volume,omitempty"`
}

func (r PlayAudioRequest) validate() error {
	if r.AccountID == "" && len(r.AccountIDs) == 0 {
		return apperr.New(apperr.KindValidation, "accountId is required")
	}
	if r.AudioData == "" {
		return apperr.New(apperr.KindValidation, "audioData is required")
	}
	if v := r.Volume; v != nil && (*v < 0 || *v > 1) {
		return apperr.Newf(apperr.KindValidation, "volume %v out of range [0, 1]", *v)
	}

	return nil
}

// targets returns the deduplicated target account list, preserving
// order.
func (r PlayAudioRequest) targets() []string {
	seen := make(map[string]bool, 1+len(r.AccountIDs))
	out := make([]string, 0, 1+len(r.AccountIDs))

	for _, id := range append([]string{r.AccountID}, r.AccountIDs...) {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}

	return out
}

// volume returns the requested volume, defaulting to full.
func (r PlayAudioRequest) volume() float64 {
	if r.Volume == nil {
		return 1
	}

	return *r.Volume
}

// StopAudioRequest cancels an account's playback.
type StopAudioRequest struct {
	AccountID string `json:"accountId"`
}

func (r StopAudioRequest) validate() error {
	return requireAccountID(r.AccountID)
}

// PlayResult reports a submitted audio job.
type PlayResult struct {
	JobID   string   `json:"jobId"`
	Targets []string `json:"targets"`
}

// AccountInfo is the externally visible account state.
type AccountInfo struct {
	ID             string          `json:"id"`
	Username       string          `json:"username"`
	Discriminator  string          `json:"discriminator"`
	Avatar         string          `json:"avatar"`
	State          string          `json:"state"`
	VoiceChannelID string          `json:"voiceChannelId,omitempty"`
	Guilds         []gateway.Guild `json:"guilds"`
}

func requireAccountID(id string) error {
	if id == "" {
		return apperr.New(apperr.KindValidation, "accountId is required")
	}

	return nil
}

func requireChannelID(id string) error {
	if id == "" {
		return apperr.New(apperr.KindValidation, "channelId is required")
	}

	return nil
}
