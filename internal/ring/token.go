package ring

import (
	"fmt"
	"net/netip"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Token is a position on the ring.
type Token int64

// String returns the decimal form used by the persisted cache.
func (t Token) String() string {
	return strconv.FormatInt(int64(t), 10)
}

// ParseToken parses the decimal form of a token.
func ParseToken(s string) (Token, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid token %q: %w", s, err)
	}
	return Token(v), nil
}

// NodeID identifies a storage node by its network address.
type NodeID = netip.Addr

// ParseNodeID parses the canonical textual address form of a node.
func ParseNodeID(s string) (NodeID, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return NodeID{}, fmt.Errorf("invalid node address %q: %w", s, err)
	}
	return addr.Unmap(), nil
}

// MustParseNodeID is like ParseNodeID but panics on error.
func MustParseNodeID(s string) NodeID {
	id, err := ParseNodeID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// Partitioner maps partitioning keys to ring tokens.
type Partitioner struct{}

// Token returns the token of the key.
func (Partitioner) Token(key []byte) Token {
	return Token(xxhash.Sum64(key))
}

// hashString computes the token of a virtual node label.
func hashString(s string) Token {
	return Token(xxhash.Sum64String(s))
}
