// Package replication selects the replica nodes of a token.
//
// The primary replica is always derived from the current ring. Secondary
// replicas are chosen once, when a token is first seen, and then stay pinned
// in the placement cache across ring changes. Every decision is flushed to
// the persisted cache before it is returned.
package replication
