// Package broadcast is the dispatch engine: it executes one confirmed
// broadcast against the full subscriber directory.
//
// Delivery semantics
//
// Delivery is best-effort, at most one attempt per recipient per job. Sends
// within a run are strictly sequential with a fixed 1/rate pause between
// consecutive attempts. A recipient that fails permanently (blocked the bot,
// account deactivated) is counted as failed and pruned from the directory;
// transient failures are counted and left alone.
//
// Runs are fire-and-forget background tasks. Dispatch never blocks the
// caller, and the run carries its own error boundary: a panic or an error
// before the first send is logged and reported to the requesting operator
// instead of silently killing the task.
package broadcast
