package cache

import (
	"strings"
	"time"
)

const defaultCodeTTL = 5 * time.Minute

// CodeResolverCache stores hot-path affiliate ID lookups for click tracking.
// Only the code→ID mapping is cached; balances are always read from the store.
type CodeResolverCache interface {
	GetAffiliateID(code string) (int64, bool)
	SetAffiliateID(code string, id int64)
	Invalidate(code string)
}

type codeResolverCache struct {
	codes Cache[string, int64]
	ttl   time.Duration
}

// NewCodeResolverCache returns an in-memory cache tuned for click tracking.
func NewCodeResolverCache() CodeResolverCache {
	return &codeResolverCache{
		codes: NewTTLCache[string, int64](),
		ttl:   defaultCodeTTL,
	}
}

func (c *codeResolverCache) GetAffiliateID(code string) (int64, bool) {
	return c.codes.Get(normalizeCode(code))
}

func (c *codeResolverCache) SetAffiliateID(code string, id int64) {
	if id == 0 {
		return
	}
	c.codes.Set(normalizeCode(code), id, c.ttl)
}

func (c *codeResolverCache) Invalidate(code string) {
	c.codes.Delete(normalizeCode(code))
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
