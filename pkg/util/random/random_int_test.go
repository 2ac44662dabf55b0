package random

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetRandomInt64Range(t *testing.T) {
	for i := 0; i < 1000; i++ {
		n := GetRandomInt64Range(100000, 1000000)
		assert.GreaterOrEqual(t, n, int64(100000))
		assert.Less(t, n, int64(1000000))
	}
	assert.Equal(t, int64(5), GetRandomInt64Range(5, 5))
	assert.Equal(t, int64(7), GetRandomInt64Range(7, 3))
}

func TestGetRandomInt(t *testing.T) {
	for i := 0; i < 100; i++ {
		n := GetRandomInt(6)
		assert.GreaterOrEqual(t, n, 100000)
		assert.Less(t, n, 1000000)
	}
}

func TestGetRandomHex(t *testing.T) {
	s := GetRandomHex(16)
	assert.Len(t, s, 32)
	assert.NotEqual(t, s, GetRandomHex(16))
}
