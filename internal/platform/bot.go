package platform

import (
	"context"

	"go.uber.org/zap"
)

// InteractionHandler receives inbound platform traffic.
type InteractionHandler interface {
	OnInteraction(ctx context.Context, in Interaction) (reply string, err error)
	OnThreadMessage(ctx context.Context, msg ThreadMessage) error
}

// Bot binds a Gateway and an InteractionHandler to the platform's event
// stream. This stub has no transport; a real client replaces Run with a
// websocket session that feeds the handler.
type Bot struct {
	gateway Gateway
	handler InteractionHandler
	logger  *zap.Logger
}

// NewBot instantiates a bot.
func NewBot(gateway Gateway, handler InteractionHandler, logger *zap.Logger) *Bot {
	return &Bot{gateway: gateway, handler: handler, logger: logger}
}

// Run blocks until the context ends.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("platform bot running without transport; inbound events disabled")
	<-ctx.Done()
	return ctx.Err()
}

// Dispatch feeds one interaction through the handler; exposed for
// transports and tests.
func (b *Bot) Dispatch(ctx context.Context, in Interaction) (string, error) {
	return b.handler.OnInteraction(ctx, in)
}

// DispatchThreadMessage feeds one thread message through the handler.
func (b *Bot) DispatchThreadMessage(ctx context.Context, msg ThreadMessage) error {
	return b.handler.OnThreadMessage(ctx, msg)
}
