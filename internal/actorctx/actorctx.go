package actorctx

import "context"

type ctxKey struct{}

// WithUsername records the dashboard user acting in ctx. Jobs and logs pick
// it up from here.
func WithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, ctxKey{}, username)
}

func UsernameFrom(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKey{}).(string)

	return v, ok && v != ""
}
