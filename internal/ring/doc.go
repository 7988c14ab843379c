// Package ring implements the ring view consumed by replica placement.
// A Snapshot is an immutable, sorted set of token to node bindings that can
// be walked cyclically from any token; Ring is a mutable membership holder
// that assigns virtual-node tokens and hands out snapshots.
package ring
