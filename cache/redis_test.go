package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Get/Set/Clear all round-trip through a live Redis connection opened by
// NewRedisCache, which this package has no fake for; Key is the one pure
// function and is covered directly. The gateway's own tests exercise the
// uncached (MISS) path and the disabled cache endpoints against a
// *RedisCache left nil (cache disabled); the hit path is not covered.
func TestKeyAddsPrefix(t *testing.T) {
	c := &RedisCache{}
	assert.Equal(t, "qplan:run:abc123", c.Key("abc123"))
}

func TestKeyDiffersForDifferentHashes(t *testing.T) {
	c := &RedisCache{}
	assert.NotEqual(t, c.Key("a"), c.Key("b"))
}
