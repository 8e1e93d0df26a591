package bridge

import "context"

type instanceKey struct{}

// WithInstance returns a copy of ctx carrying inst. The delegated executor
// hands the instance to an evaluated program this way.
func WithInstance(ctx context.Context, inst *Instance) context.Context {
	return context.WithValue(ctx, instanceKey{}, inst)
}

// FromContext returns the instance carried by ctx, or nil.
func FromContext(ctx context.Context) *Instance {
	inst, _ := ctx.Value(instanceKey{}).(*Instance)
	return inst
}
