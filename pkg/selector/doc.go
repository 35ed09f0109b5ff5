// Package selector defines a generic contract for choosing one element out of
// an ordered candidate list, plus a few composable policies built on it:
//
//   - Master: the first candidate satisfying a primary predicate, never a backup
//   - Fallback: asks several selectors in order and keeps the first answer
//   - Filter: narrows candidates before delegating to another selector
//   - RoundRobin and Random: load sharing across all candidates
//
// Selectors never mutate or retain the candidate slice. Absence of a result is
// reported through the second return value, so a zero T is never ambiguous.
//
// Example:
//
//	primary := selector.NewMaster(func(n *Node) bool { return n.Role == "master" })
//	policy := selector.NewFallback(primary, selector.NewRoundRobin[*Node]())
//
//	if node, ok := policy.Select(nodes); ok {
//		// route to node
//	}
package selector
