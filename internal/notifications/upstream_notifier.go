package notifications

import "context"

type EventSender interface {
	SendNotification(ctx context.Context, eventID int64) error
}

// TokenRunner runs fn with a context that carries a valid upstream token.
type TokenRunner interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// UpstreamNotifier asks the voting API to do the send. Without a TokenRunner
// the caller's context must already carry a token.
type UpstreamNotifier struct {
	api    EventSender
	tokens TokenRunner
}

func NewUpstreamNotifier(api EventSender, tokens TokenRunner) *UpstreamNotifier {
	return &UpstreamNotifier{api: api, tokens: tokens}
}

func (n *UpstreamNotifier) SendEventNotification(ctx context.Context, in SendEventNotificationInput) error {
	send := func(ctx context.Context) error {
		return n.api.SendNotification(ctx, in.EventID)
	}

	if n.tokens == nil {
		return send(ctx)
	}

	return n.tokens.Do(ctx, send)
}
