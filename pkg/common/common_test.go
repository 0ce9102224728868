package common

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrefixedIDIsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := PrefixedID("cart")
		assert.True(t, strings.HasPrefix(id, "cart_"))
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestIfEmptyStr(t *testing.T) {
	assert.Equal(t, "2", IfEmptyStr("  ", "2"))
	assert.Equal(t, "x", IfEmptyStr("x", "2"))
}
