package ring

import (
	"fmt"
	"sort"
	"sync"
)

// vnode represents a virtual node on the ring.
type vnode struct {
	token  Token
	nodeID NodeID
}

// Ring holds cluster membership and assigns virtual-node tokens.
// It implements View.
type Ring struct {
	mu            sync.RWMutex
	vnodesPerNode int
	vnodes        []vnode
	nodes         map[NodeID]bool
}

// View supplies the current ring snapshot.
type View interface {
	Snapshot() *Snapshot
}

// NewRing creates a new ring.
func NewRing(vnodesPerNode int) *Ring {
	if vnodesPerNode <= 0 {
		vnodesPerNode = 16 // default
	}
	return &Ring{
		vnodesPerNode: vnodesPerNode,
		vnodes:        make([]vnode, 0),
		nodes:         make(map[NodeID]bool),
	}
}

// VNodes returns the number of virtual nodes per physical node.
func (r *Ring) VNodes() int {
	return r.vnodesPerNode
}

// SetNodes rebuilds the ring with the given nodes.
// Same nodes produce the same ring regardless of order.
func (r *Ring) SetNodes(nodes []NodeID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nodes = make(map[NodeID]bool)
	r.vnodes = make([]vnode, 0, len(nodes)*r.vnodesPerNode)

	for _, node := range nodes {
		if r.nodes[node] {
			continue
		}
		r.nodes[node] = true
		r.vnodes = append(r.vnodes, r.vnodesFor(node)...)
	}

	r.sortVNodes()
}

// AddNode adds a node to the ring.
func (r *Ring) AddNode(node NodeID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.nodes[node] {
		return // already exists
	}

	r.nodes[node] = true
	r.vnodes = append(r.vnodes, r.vnodesFor(node)...)
	r.sortVNodes()
}

// RemoveNode removes a node from the ring.
func (r *Ring) RemoveNode(node NodeID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.nodes[node] {
		return // doesn't exist
	}

	delete(r.nodes, node)
	kept := make([]vnode, 0, len(r.vnodes))
	for _, v := range r.vnodes {
		if v.nodeID != node {
			kept = append(kept, v)
		}
	}
	r.vnodes = kept
}

// Nodes returns all nodes in the ring, sorted by address.
func (r *Ring) Nodes() []NodeID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	nodes := make([]NodeID, 0, len(r.nodes))
	for node := range r.nodes {
		nodes = append(nodes, node)
	}
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].Less(nodes[j])
	})
	return nodes
}

// Snapshot returns an immutable copy of the current ring.
// On a token collision the binding that sorts first wins.
func (r *Ring) Snapshot() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bindings := make(map[Token]NodeID, len(r.vnodes))
	for _, v := range r.vnodes {
		if _, exists := bindings[v.token]; !exists {
			bindings[v.token] = v.nodeID
		}
	}
	return NewSnapshot(bindings)
}

func (r *Ring) vnodesFor(node NodeID) []vnode {
	out := make([]vnode, 0, r.vnodesPerNode)
	for i := 0; i < r.vnodesPerNode; i++ {
		label := fmt.Sprintf("%s-vnode-%d", node, i)
		out = append(out, vnode{token: hashString(label), nodeID: node})
	}
	return out
}

// sortVNodes orders by token, then by address so collisions resolve the same way every time.
func (r *Ring) sortVNodes() {
	sort.Slice(r.vnodes, func(i, j int) bool {
		if r.vnodes[i].token != r.vnodes[j].token {
			return r.vnodes[i].token < r.vnodes[j].token
		}
		return r.vnodes[i].nodeID.Less(r.vnodes[j].nodeID)
	})
}
