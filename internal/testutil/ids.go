package testutil

import (
	"fmt"
	"sync/atomic"
)

// SequenceGenerator returns "<prefix>-1", "<prefix>-2", ... so tests can
// predict execution ids.
//
// Thread-safety: safe for concurrent use.
type SequenceGenerator struct {
	Prefix string
	n      atomic.Int64
}

// NewSequenceGenerator creates a generator with the given prefix.
// An empty prefix defaults to "exec".
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	if prefix == "" {
		prefix = "exec"
	}
	return &SequenceGenerator{Prefix: prefix}
}

// Generate returns the next id.
func (g *SequenceGenerator) Generate() string {
	return fmt.Sprintf("%s-%d", g.Prefix, g.n.Add(1))
}
