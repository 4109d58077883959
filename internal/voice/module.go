package voice

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/3cgajwdsuykk/discord-multi-manager/internal/config"
)

// Module provides the audio fan-out engine.
var Module = fx.Module("voice",
	fx.Provide(
		func(logger *zap.Logger, cfg *config.Config) *Engine {
			return NewEngine(logger, cfg.Voice.FrameDuration)
		},
	),
)
