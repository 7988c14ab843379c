// Package placement provides the in-memory placement cache: the last replica
// decision made for every token seen so far. Position 0 of a record is the
// primary replica, the rest are secondaries.
package placement
