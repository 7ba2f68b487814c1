// Package engine implements the dispatch engines for hubdispatch.
//
// The publishing engine fans a due post out to its platforms; the payout
// engine runs the three-phase payout pipeline. Both are single-threaded and
// run to completion once per invocation; safety under a re-firing scheduler
// comes from the status state machine and the same-day idempotency guard,
// not from locks.
package engine

// Counters accumulate one phase's results. They advance in dry-run mode too,
// so a dry run exits the way the live run would.
type Counters struct {
	Succeeded int
	Failed    int
}

// PayoutCounters holds the per-phase counters of one payout run.
type PayoutCounters struct {
	Collect Counters
	Process Counters
	Sweep   Counters
}

// Failures returns the total failure count across all phases.
func (p PayoutCounters) Failures() int {
	return p.Collect.Failed + p.Process.Failed + p.Sweep.Failed
}

// Successes returns the total success count across all phases.
func (p PayoutCounters) Successes() int {
	return p.Collect.Succeeded + p.Process.Succeeded + p.Sweep.Succeeded
}
