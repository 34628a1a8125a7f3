package typedData

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// DomainSeparatorCache memoizes domain separators. Entries are keyed by every descriptor field,
// so a different chain id or verifying contract always computes a fresh separator.
type DomainSeparatorCache struct {
	mu      sync.RWMutex
	entries map[domainKey]common.Hash
}

func NewDomainSeparatorCache() *DomainSeparatorCache {
	return &DomainSeparatorCache{
		entries: make(map[domainKey]common.Hash),
	}
}

func (c *DomainSeparatorCache) Get(d DomainDescriptor) common.Hash {
	k := d.key()

	c.mu.RLock()
	sep, ok := c.entries[k]
	c.mu.RUnlock()
	if ok {
		return sep
	}

	sep = DomainSeparator(d)

	c.mu.Lock()
	c.entries[k] = sep
	c.mu.Unlock()
	return sep
}

func (c *DomainSeparatorCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
