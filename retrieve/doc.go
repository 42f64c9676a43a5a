// Package retrieve implements layered context retrieval: a sequential
// L0→L1→L2 escalation over a session's index snapshot, selecting the
// cheapest layer of detail that answers the query with enough confidence,
// under a hard token budget.
package retrieve
