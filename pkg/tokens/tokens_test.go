package tokens

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xhad/agrisaathi/pkg/logger"
)

func TestApproxCountsRunes(t *testing.T) {
	var c Approx

	assert.Equal(t, 0, c.Count(""))
	assert.Equal(t, 2, c.Count("abcdefgh"))
	assert.Equal(t, 600, c.Count(strings.Repeat("x", 2400)))
	// Devanagari is multi-byte; the estimate is per rune, not per byte.
	assert.Equal(t, 1, c.Count("खेतीबा"))
}

func TestNewFallsBackForUnknownEncoding(t *testing.T) {
	c := New("no-such-encoding", logger.Discard())

	_, ok := c.(Approx)
	assert.True(t, ok)
	assert.Equal(t, 3, c.Count("twelve chars"))
}
