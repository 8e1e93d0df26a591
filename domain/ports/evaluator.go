package ports

import "context"

// Evaluator runs a bundled program inside the unconstrained executor.
// Evaluation is expected to reach the program's handler entry point, which
// deposits a pending result into the delegation channel of the instance that
// the evaluator was handed through ctx.
type Evaluator interface {
	Evaluate(ctx context.Context, name string, source []byte) error
}

// EvaluatorFunc adapts a function to the Evaluator interface.
type EvaluatorFunc func(ctx context.Context, name string, source []byte) error

// Evaluate implements Evaluator.
func (f EvaluatorFunc) Evaluate(ctx context.Context, name string, source []byte) error {
	return f(ctx, name, source)
}
