// Package taskgraph holds named build tasks with prerequisite edges and executes them in
// dependency order.
//
// A Graph is validated once at construction: every task needs a unique non-empty name, every
// referenced task must exist, and prerequisite edges must not form a cycle. Validation
// failures are configuration errors surfaced before any task runs.
//
// Execution is step based. A Step with one name runs that task to completion before the
// next step starts; a Step with several names runs them concurrently and waits for all of
// them. When a member of a group fails, its siblings still run to completion and the first
// error is returned; subsequent steps are not started.
package taskgraph
