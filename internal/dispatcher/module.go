package dispatcher

import (
	"go.uber.org/fx"

	"github.com/3cgajwdsuykk/discord-multi-manager/pkg/audio"
)

// Module provides the command dispatcher with the production opus
// encoder factory.
var Module = fx.Module("dispatcher",
	fx.Provide(
		func() EncoderFactory { return audio.NewOpusEncoder },
		NewDispatcher,
	),
)
