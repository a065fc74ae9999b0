package domain

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Injection patterns — SQL/template fragments that should never appear in a
// jewelry question.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(DROP|DELETE|INSERT|UPDATE|ALTER|EXEC|UNION)\b.*\b(TABLE|FROM|INTO|SELECT|SET)\b`),
	regexp.MustCompile(`(?i)(--|;)\s*(DROP|DELETE|SELECT)`),
	regexp.MustCompile(`(?i)\$\{.*\}`),
	regexp.MustCompile(`(?i)\{\s*"\$[a-z]+"\s*:`),
}

const (
	minQueryLength = 2
	maxQueryLength = 2000
)

// ValidateQuery validates a chat query before it enters the pipeline.
func ValidateQuery(q Query) error {
	text := strings.TrimSpace(q.Text)

	n := utf8.RuneCountInString(text)
	if n < minQueryLength {
		return NewValidationError("text", text, ErrQueryTooShort)
	}
	if n > maxQueryLength {
		return NewValidationError("text", text[:32]+"...", ErrQueryTooLong)
	}

	for _, pat := range injectionPatterns {
		if pat.MatchString(text) {
			return NewValidationError("text", text, ErrQueryInjection)
		}
	}

	return nil
}
