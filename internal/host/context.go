package host

import "context"

type nodeKey struct{}

// WithNode returns a context recording that the current unit of work runs
// on the node named name.
func WithNode(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, nodeKey{}, name)
}

// NodeFromContext returns the node the current unit of work runs on.
func NodeFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(nodeKey{}).(string)
	return name, ok && name != ""
}
