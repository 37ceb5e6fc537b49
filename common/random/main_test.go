package random_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makehub/llm-gateway/common/random"
)

func TestGetRandomStringShape(t *testing.T) {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	for _, length := range []int{1, 24, 64} {
		s := random.GetRandomString(length)
		require.Len(t, s, length)
		for _, r := range s {
			assert.True(t, strings.ContainsRune(alphabet, r), "unexpected character %q", r)
		}
	}
}

func TestGetRandomStringUniqueness(t *testing.T) {
	seen := make(map[string]bool, 10000)
	for i := 0; i < 10000; i++ {
		s := random.GetRandomString(24)
		require.False(t, seen[s], "duplicate after %d draws", i)
		seen[s] = true
	}
}
