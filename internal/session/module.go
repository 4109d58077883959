package session

import (
	"context"

	"go.uber.org/fx"
)

// Module provides the session registry and ties its teardown to the
// application lifecycle: shutdown disconnects every account.
var Module = fx.Module("session",
	fx.Provide(NewRegistry),
	fx.Invoke(registerLifecycle),
)

func registerLifecycle(lc fx.Lifecycle, r *Registry) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			r.Close(ctx)

			return nil
		},
	})
}
