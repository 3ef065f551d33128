package console

import "context"

type ctxKey int

const ctxKeyVerbose ctxKey = iota

// SetVerbose marks the context so that downstream adapters dump wire traffic.
func SetVerbose(parent context.Context, value bool) context.Context {
	return context.WithValue(parent, ctxKeyVerbose, value)
}

func IsVerbose(ctx context.Context) bool {
	verbose, _ := ctx.Value(ctxKeyVerbose).(bool)
	return verbose
}
