package eip712

import (
	"reflect"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// TypeHashCache memoizes type hashes by concrete Go type. Entries are never
// evicted. It is safe for concurrent use: lookups share a read lock and a
// miss is computed outside any lock, so two callers may hash the same type at
// once and store the same value.
type TypeHashCache struct {
	mu     sync.RWMutex
	hashes map[reflect.Type]common.Hash
}

// NewTypeHashCache returns an empty cache.
func NewTypeHashCache() *TypeHashCache {
	return &TypeHashCache{hashes: make(map[reflect.Type]common.Hash)}
}

var defaultCache = sync.OnceValue(NewTypeHashCache)

// DefaultCache returns the process-wide cache used by the package-level
// functions. It is created on first use.
func DefaultCache() *TypeHashCache {
	return defaultCache()
}

// TypeHash returns keccak256(EncodeType(s)), computing it on first use for
// the concrete type of s.
func (c *TypeHashCache) TypeHash(s StructType) (common.Hash, error) {
	if s == nil {
		return common.Hash{}, schemaErrorf("nil struct value")
	}
	id := typeIdentity(s)

	c.mu.RLock()
	hash, ok := c.hashes[id]
	c.mu.RUnlock()
	if ok {
		return hash, nil
	}

	encoded, err := encodeType(s)
	if err != nil {
		return common.Hash{}, err
	}
	hash = crypto.Keccak256Hash([]byte(encoded))

	c.mu.Lock()
	c.hashes[id] = hash
	c.mu.Unlock()
	return hash, nil
}

// Len reports how many types have been hashed.
func (c *TypeHashCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.hashes)
}
