package processor

import (
	"math/big"
	"sync"

	"github.com/worldtree/genetics-worker/model/genetics"
)

// ResultCache holds completed analysis results in memory, keyed by the
// decimal request id, for the local status API. Results carry no raw SNP
// data, so caching them does not extend the lifetime of genotype material.
type ResultCache struct {
	mu      sync.RWMutex
	results map[string]*genetics.Result
}

func NewResultCache() *ResultCache {
	return &ResultCache{results: make(map[string]*genetics.Result)}
}

func (c *ResultCache) Put(id *big.Int, result *genetics.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[id.String()] = result
}

func (c *ResultCache) Get(id string) (*genetics.Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result, ok := c.results[id]
	return result, ok
}

func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.results)
}
