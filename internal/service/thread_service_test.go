package service

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestDeriveSubjectUsesFirstLine(t *testing.T) {
	assert.Equal(t, "Subject line", deriveSubject("Subject line\nBody follows"))
	assert.Equal(t, "Subject line", deriveSubject("  Subject line\r\nBody follows"))
}

func TestDeriveSubjectDefaultsWhenEmpty(t *testing.T) {
	assert.Equal(t, "New conversation", deriveSubject("   "))
}

func TestDeriveSubjectTruncatesLongContent(t *testing.T) {
	subject := deriveSubject(strings.Repeat("a", 200))
	assert.Len(t, subject, maxSubjectLength)
	assert.True(t, strings.HasSuffix(subject, "..."))
}

func TestDeriveSubjectTruncatesOnRuneBoundary(t *testing.T) {
	// multi-byte runes must never be split mid-sequence
	subject := deriveSubject(strings.Repeat("é", 120))
	assert.True(t, utf8.ValidString(subject))
	assert.True(t, strings.HasSuffix(subject, "..."))
	assert.LessOrEqual(t, len(subject), maxSubjectLength)

	subject = deriveSubject(strings.Repeat("漢", 80))
	assert.True(t, utf8.ValidString(subject))
	assert.LessOrEqual(t, len(subject), maxSubjectLength)
}
