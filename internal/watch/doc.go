// Package watch evaluates every recently flagged stock once per run.
//
// The Engine re-derives all history from the full attention log on each
// call: duplicate (date, code) citations are merged, disposal periods become
// an exclusion map, and each candidate stock gets a fixed-size window of
// accumulation bits ending at the evaluation date. The simulator and the
// risk scorer then turn that window into one report Row.
//
// Rows are returned in the order stocks first appear in the log. A failure
// for one stock degrades that row instead of aborting the batch; only
// contract violations on the shared inputs (calendar, evaluation date) fail
// the whole call.
package watch
