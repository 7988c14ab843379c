package replication

import (
	"placement/internal/ring"
)

// Eligible decides whether a node may hold a secondary replica.
type Eligible func(node ring.NodeID) bool

// AnyNode accepts every node.
func AnyNode(ring.NodeID) bool {
	return true
}

// EvenLastOctet accepts nodes whose address ends in an even byte.
// It is the reference policy of the sticky strategy.
func EvenLastOctet(node ring.NodeID) bool {
	if !node.IsValid() {
		return false
	}
	b := node.As16()
	return b[15]%2 == 0
}
