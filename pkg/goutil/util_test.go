package goutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDayBucket(t *testing.T) {
	// 2024-05-01T15:04:05Z -> 2024-05-01T00:00:00Z
	assert.Equal(t, uint64(1714521600), DayBucket(1714575845))

	// already at midnight
	assert.Equal(t, uint64(1714521600), DayBucket(1714521600))

	// one second before midnight stays in the same day
	assert.Equal(t, uint64(1714521600), DayBucket(1714521600+86399))

	// midnight itself rolls over
	assert.Equal(t, uint64(1714521600+86400), DayBucket(1714521600+86400))
}

func TestContainsStr(t *testing.T) {
	assert.True(t, ContainsStr([]string{"a", "b"}, "b"))
	assert.False(t, ContainsStr([]string{"a", "b"}, "c"))
	assert.False(t, ContainsStr(nil, "a"))
}
