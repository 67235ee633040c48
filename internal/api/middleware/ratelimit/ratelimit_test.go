package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimiterAllowsUpToBudget(t *testing.T) {
	l := New(5)
	defer l.Stop()

	for i := 0; i < 5; i++ {
		assert.True(t, l.allow("10.0.0.1"), "request %d should be allowed", i+1)
	}
	assert.False(t, l.allow("10.0.0.1"))
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	l := New(1)
	defer l.Stop()

	assert.True(t, l.allow("10.0.0.1"))
	assert.False(t, l.allow("10.0.0.1"))
	assert.True(t, l.allow("10.0.0.2"))
}

func TestLimiterDefaultsWhenUnconfigured(t *testing.T) {
	l := New(0)
	defer l.Stop()

	assert.Equal(t, 60, l.maxTokens)
	assert.True(t, l.allow("10.0.0.1"))
}
