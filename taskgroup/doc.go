// Package taskgroup implements structured concurrency over future.Task:
// a scope spawns child tasks, and on exit waits for every child, folding
// failures into a single aggregated error.
//
// Because Go lacks `async with` sugar, the scope is a plain function,
// Run, that owns enter/exit bracketing — a function that runs a
// caller-supplied body to completion, the same shape
// golang.org/x/sync/errgroup's Group.Go/Wait settled on for the broader
// ecosystem. Run is not built on errgroup directly: its children are
// loop-driven Tasks, not bare goroutines, but its "first error plus all
// contribute" aggregation mirrors errgroup's reporting shape.
package taskgroup
