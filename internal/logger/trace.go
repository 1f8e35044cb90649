package logger

import "context"

type runKey struct{}

// RunContext carries identifiers of the provisioning run for log correlation.
type RunContext struct {
	RunID string
	Step  string
}

// ContextWithRun returns a derived context carrying the provided run metadata.
func ContextWithRun(ctx context.Context, run RunContext) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, runKey{}, run)
}

// RunFromContext extracts a RunContext from ctx.
func RunFromContext(ctx context.Context) RunContext {
	if ctx == nil {
		return RunContext{}
	}
	if run, ok := ctx.Value(runKey{}).(RunContext); ok {
		return run
	}
	return RunContext{}
}

func runFieldsFromContext(ctx context.Context) []Field {
	return RunFromContext(ctx).fields()
}

func (r RunContext) fields() []Field {
	var fields []Field
	if r.RunID != "" {
		fields = append(fields, String("run_id", r.RunID))
	}
	if r.Step != "" {
		fields = append(fields, String("step", r.Step))
	}
	return fields
}
