// Package trace records span events for the stages of a compilation.
//
// A Tracer travels in the context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopePass, "lower", parent)
//	defer span.End("")
//
// Levels select how deep spans are emitted: phase shows driver stages and
// passes, detail adds functions and debug adds single statements.
package trace
