package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestTextLimiterTruncate(t *testing.T) {
	l := NewTextLimiter(5, zap.NewNop())

	assert.Equal(t, "short", l.Truncate("short"))
	assert.Equal(t, "hello", l.Truncate("hello world"))

	// "héllo" is 6 bytes; cutting at 5 must not split the é
	out := l.Truncate("hé" + "llo!")
	assert.True(t, utf8.ValidString(out))
	assert.LessOrEqual(t, len(out), 5)
	assert.Equal(t, "héll", out)
}

func TestTextLimiterUnlimited(t *testing.T) {
	l := NewTextLimiter(0, zap.NewNop())
	long := strings.Repeat("x", 10000)
	assert.Equal(t, long, l.Truncate(long))
}

func TestTextLimiterSanitize(t *testing.T) {
	l := NewTextLimiter(0, zap.NewNop())

	assert.Equal(t, "valid", l.Sanitize("valid"))
	assert.Equal(t, "ab", l.Sanitize("a\xffb"))
	assert.True(t, utf8.ValidString(l.Limit("bad\xc3")))
}
