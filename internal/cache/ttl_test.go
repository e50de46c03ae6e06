package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLCache_SetGet(t *testing.T) {
	c := NewTTLCache[string, int64]()

	c.Set("a", 42, time.Minute)
	got, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, int64(42), got)
}

func TestTTLCache_Expiry(t *testing.T) {
	c := NewTTLCache[string, int64]()

	c.Set("a", 42, 10*time.Millisecond)
	time.Sleep(25 * time.Millisecond)

	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestTTLCache_Delete(t *testing.T) {
	c := NewTTLCache[string, int64]()

	c.Set("a", 42, time.Minute)
	c.Delete("a")

	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestCodeResolverCache_NormalizesCodes(t *testing.T) {
	c := NewCodeResolverCache()

	c.SetAffiliateID("abcd2345", 7)
	id, ok := c.GetAffiliateID("  ABCD2345 ")
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)

	c.Invalidate("Abcd2345")
	_, ok = c.GetAffiliateID("ABCD2345")
	assert.False(t, ok)
}

func TestCodeResolverCache_IgnoresZeroID(t *testing.T) {
	c := NewCodeResolverCache()

	c.SetAffiliateID("ABCD2345", 0)
	_, ok := c.GetAffiliateID("ABCD2345")
	assert.False(t, ok)
}
