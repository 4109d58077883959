package gateway

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// messageCacheTTL keeps fetched history fresh enough for a chat view
// while absorbing bursts of polling from the UI.
const messageCacheTTL = 10 * time.Second

// MessageCache caches recent message history per channel. Entries
// expire so repeated list-messages polls within the TTL window do not
// hammer the protocol endpoint.
type MessageCache struct {
	lru *expirable.LRU[string, []Message]
}

// NewMessageCache creates a message cache holding up to size channels.
func NewMessageCache(size int) *MessageCache {
	return &MessageCache{
		lru: expirable.NewLRU[string, []Message](size, nil, messageCacheTTL),
	}
}

// Get returns the cached history for a channel, if present.
func (c *MessageCache) Get(channelID string) ([]Message, bool) {
	return c.lru.Get(channelID)
}

// Put stores the history for a channel.
func (c *MessageCache) Put(channelID string, messages []Message) {
	c.lru.Add(channelID, messages)
}

// Invalidate drops a channel's entry, used after sending a message so
// the next fetch observes it.
func (c *MessageCache) Invalidate(channelID string) {
	c.lru.Remove(channelID)
}
