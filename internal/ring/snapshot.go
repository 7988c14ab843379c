package ring

import (
	"sort"
)

// Snapshot is an immutable, cyclic sequence of token to node bindings.
type Snapshot struct {
	tokens    []Token
	endpoints map[Token]NodeID
}

// NewSnapshot builds a snapshot from explicit bindings.
func NewSnapshot(bindings map[Token]NodeID) *Snapshot {
	s := &Snapshot{
		tokens:    make([]Token, 0, len(bindings)),
		endpoints: make(map[Token]NodeID, len(bindings)),
	}
	for t, n := range bindings {
		s.tokens = append(s.tokens, t)
		s.endpoints[t] = n
	}
	sort.Slice(s.tokens, func(i, j int) bool {
		return s.tokens[i] < s.tokens[j]
	})
	return s
}

// Len returns the number of ring positions.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.tokens)
}

// Empty reports whether the ring has no positions.
func (s *Snapshot) Empty() bool {
	return s.Len() == 0
}

// SortedTokens returns a copy of the ring positions in ascending order.
func (s *Snapshot) SortedTokens() []Token {
	if s == nil {
		return []Token{}
	}
	return append([]Token(nil), s.tokens...)
}

// Endpoint returns the node bound to the exact ring position.
func (s *Snapshot) Endpoint(t Token) (NodeID, bool) {
	if s == nil {
		return NodeID{}, false
	}
	n, ok := s.endpoints[t]
	return n, ok
}

// Nodes returns the distinct nodes of the ring in token order.
func (s *Snapshot) Nodes() []NodeID {
	seen := make(map[NodeID]bool)
	out := make([]NodeID, 0)
	for _, t := range s.SortedTokens() {
		n := s.endpoints[t]
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

// Iterator returns an iterator positioned at the first token >= start,
// wrapping to the lowest token if start is beyond all of them.
func (s *Snapshot) Iterator(start Token) *Iterator {
	idx := 0
	if s.Len() > 0 {
		idx = sort.Search(len(s.tokens), func(i int) bool {
			return s.tokens[i] >= start
		})
		if idx >= len(s.tokens) {
			idx = 0
		}
	}
	return &Iterator{snap: s, start: idx}
}

// Iterator walks the ring forward for exactly one revolution.
type Iterator struct {
	snap    *Snapshot
	start   int
	visited int
}

// HasNext reports whether unvisited positions remain.
func (it *Iterator) HasNext() bool {
	return it.visited < it.snap.Len()
}

// Next returns the next ring position and its node.
// ok is false once the iterator has gone around the ring.
func (it *Iterator) Next() (Token, NodeID, bool) {
	if !it.HasNext() {
		return 0, NodeID{}, false
	}
	pos := (it.start + it.visited) % len(it.snap.tokens)
	it.visited++
	t := it.snap.tokens[pos]
	return t, it.snap.endpoints[t], true
}
