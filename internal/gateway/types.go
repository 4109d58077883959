package gateway

import "time"

// Identity describes the authenticated account. Immutable once
// established by a successful authenticate.
type Identity struct {
	ID            string
	Username      string
	Discriminator string
	Avatar        string
}

// Guild is one guild visible to an account.
type Guild struct {
	ID   string
	Name string
	Icon string
}

// ChannelKind classifies a guild channel for the API surface.
type ChannelKind string

const (
	ChannelText  ChannelKind = "text"
	ChannelVoice ChannelKind = "voice"
	ChannelOther ChannelKind = "other"
)

// Channel is one guild channel.
type Channel struct {
	ID   string
	Name string
	Kind ChannelKind
}

// Author identifies a message author.
type Author struct {
	ID       string
	Username string
	Avatar   string
}

// Message is one chat message.
type Message struct {
	ID        string
	Content   string
	Timestamp time.Time
	Author    Author
}
