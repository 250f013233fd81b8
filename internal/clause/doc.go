// Package clause turns the free-text regulatory citations found in attention
// bulletins into sets of clause identifiers and classifies those sets.
//
// A citation such as "第一款、第３款" is first normalized (typo fixes,
// Chinese numerals, full-width digits) and then matched against the
// canonical "第N款" pattern. Citations that never use that phrasing fall back
// to a keyword table. Nothing in this package returns an error: an
// unrecognized citation is simply an empty ClauseSet.
//
// The Rules type decides what a ClauseSet means for escalation: whether the
// day counts toward an accumulation streak, whether it is a special-risk day
// that only a human review can resolve, and whether it cites the clause that
// lengthens the resulting disposal period.
package clause
