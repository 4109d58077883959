package gateway

import (
	"go.uber.org/fx"

	"github.com/3cgajwdsuykk/discord-multi-manager/internal/config"
)

// Module provides the protocol client dialer and the message cache.
var Module = fx.Module("gateway",
	fx.Provide(
		NewArikawaDialer,
		func(cfg *config.Config) *MessageCache {
			return NewMessageCache(cfg.MessageCacheSize)
		},
	),
)
