package config

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"placement/internal/ring"
)

// RingFile is a YAML ring description. Either Positions binds explicit
// tokens, or Nodes lists members that get virtual-node tokens.
type RingFile struct {
	VNodes    int        `yaml:"vnodes"`
	Nodes     []string   `yaml:"nodes"`
	Positions []Position `yaml:"positions"`
}

// Position is one explicit token binding.
type Position struct {
	Token int64  `yaml:"token"`
	Node  string `yaml:"node"`
}

// LoadRingFile reads and parses a YAML ring description.
func LoadRingFile(fs afero.Fs, path string) (*ring.Snapshot, error) {
	content, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("cannot read ring file %q: %w", path, err)
	}

	var rf RingFile
	if err := yaml.Unmarshal(content, &rf); err != nil {
		return nil, fmt.Errorf("invalid ring file %q: %w", path, err)
	}
	return rf.Snapshot()
}

// Snapshot builds the ring described by the file.
func (f RingFile) Snapshot() (*ring.Snapshot, error) {
	if len(f.Positions) > 0 && len(f.Nodes) > 0 {
		return nil, fmt.Errorf("ring file cannot use both positions and nodes")
	}

	if len(f.Positions) > 0 {
		bindings := make(map[ring.Token]ring.NodeID, len(f.Positions))
		for _, p := range f.Positions {
			node, err := ring.ParseNodeID(strings.TrimSpace(p.Node))
			if err != nil {
				return nil, err
			}
			if _, exists := bindings[ring.Token(p.Token)]; exists {
				return nil, fmt.Errorf("duplicate ring token %d", p.Token)
			}
			bindings[ring.Token(p.Token)] = node
		}
		return ring.NewSnapshot(bindings), nil
	}

	nodes := make([]ring.NodeID, 0, len(f.Nodes))
	for _, s := range f.Nodes {
		node, err := ring.ParseNodeID(strings.TrimSpace(s))
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	r := ring.NewRing(f.VNodes)
	r.SetNodes(nodes)
	return r.Snapshot(), nil
}

// ParseNodes parses an inline ring description in the format:
// "token1=addr1,token2=addr2"
func ParseNodes(s string) (*ring.Snapshot, error) {
	if strings.TrimSpace(s) == "" {
		return ring.NewSnapshot(nil), nil
	}

	parts := strings.Split(s, ",")
	bindings := make(map[ring.Token]ring.NodeID, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid ring position: %s (expected token=addr)", part)
		}

		token, err := ring.ParseToken(strings.TrimSpace(kv[0]))
		if err != nil {
			return nil, err
		}
		node, err := ring.ParseNodeID(strings.TrimSpace(kv[1]))
		if err != nil {
			return nil, err
		}
		if _, exists := bindings[token]; exists {
			return nil, fmt.Errorf("duplicate ring token %s", token)
		}
		bindings[token] = node
	}

	return ring.NewSnapshot(bindings), nil
}
