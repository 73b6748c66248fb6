package maskflow

import "sync"

// IDGenerator hands out dense incremental ids starting at zero
type IDGenerator struct {
	id int
	sync.Mutex
}

// NewIDGenerator returns a generator whose first id is 0
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// GetNext returns the next id
func (g *IDGenerator) GetNext() int {
	g.Lock()
	defer g.Unlock()
	next := g.id
	g.id++
	return next
}

// Issued returns how many ids have been handed out
func (g *IDGenerator) Issued() int {
	g.Lock()
	defer g.Unlock()
	return g.id
}
