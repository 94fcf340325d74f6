package utils

import (
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// TextLimiter bounds and repairs message text before it is classified
type TextLimiter struct {
	maxBytes int
	logger   *zap.Logger
}

// NewTextLimiter creates a TextLimiter; maxBytes <= 0 disables truncation
func NewTextLimiter(maxBytes int, logger *zap.Logger) *TextLimiter {
	return &TextLimiter{
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// Truncate cuts text to at most maxBytes without splitting a UTF-8 sequence
func (l *TextLimiter) Truncate(text string) string {
	if l.maxBytes <= 0 || len(text) <= l.maxBytes {
		return text
	}

	truncated := text[:l.maxBytes]
	for len(truncated) > 0 && !utf8.ValidString(truncated) {
		truncated = truncated[:len(truncated)-1]
	}

	l.logger.Debug("Text truncated",
		zap.Int("original_size", len(text)),
		zap.Int("truncated_size", len(truncated)),
		zap.Int("max_size", l.maxBytes))

	return truncated
}

// Sanitize drops invalid UTF-8 bytes
func (l *TextLimiter) Sanitize(text string) string {
	if utf8.ValidString(text) {
		return text
	}

	sanitized := strings.ToValidUTF8(text, "")

	l.logger.Debug("Text sanitized",
		zap.Int("original_size", len(text)),
		zap.Int("sanitized_size", len(sanitized)))

	return sanitized
}

// Limit sanitizes then truncates
func (l *TextLimiter) Limit(text string) string {
	return l.Truncate(l.Sanitize(text))
}
