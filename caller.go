package factoring

import "context"

type callerKey struct{}

// WithCaller returns a context that carries the principal performing the
// call. Every mutating engine method reads its caller from the context.
func WithCaller(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, callerKey{}, principal)
}

// CallerFrom returns the principal stored by WithCaller.
func CallerFrom(ctx context.Context) (string, bool) {
	principal, ok := ctx.Value(callerKey{}).(string)
	return principal, ok && principal != ""
}

func callerOf(ctx context.Context) (string, error) {
	principal, ok := CallerFrom(ctx)
	if !ok {
		return "", ErrUnauthorized
	}
	return principal, nil
}
