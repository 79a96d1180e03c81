package testfixtures

import (
	"fmt"
	"sync"
)

// IDGenerator hands out predictable identifiers so tests can assert on the
// IDs assigned to accounts, rules, and gigs instead of matching UUIDs.
type IDGenerator struct {
	mu     sync.Mutex
	prefix string
	next   uint64
}

// NewIDGenerator returns a generator producing "<prefix>-1", "<prefix>-2"
// and so on. An empty prefix falls back to "id".
func NewIDGenerator(prefix string) *IDGenerator {
	g := &IDGenerator{}
	g.Reset(prefix)
	return g
}

// Next returns the next identifier in sequence.
func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("%s-%d", g.prefix, g.next)
}

// NextFunc adapts the generator to the func() string shape the application
// services take as their identifier dependency.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return func() string { return "" }
	}
	return g.Next
}

// Reset restarts the sequence from 1 under a new prefix, so one generator
// can be reused across subtests without identifiers bleeding between them.
func (g *IDGenerator) Reset(prefix string) {
	if prefix == "" {
		prefix = "id"
	}
	g.mu.Lock()
	g.prefix = prefix
	g.next = 0
	g.mu.Unlock()
}
