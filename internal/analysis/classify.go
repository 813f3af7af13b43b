package analysis

import (
	"context"
	"errors"
	"net/http"
	"regexp"
)

// Category is the user-facing failure taxonomy.
type Category string

const (
	CategoryPermissionDenied     Category = "permission_denied"
	CategoryQuotaExceeded        Category = "quota_exceeded"
	CategoryInvalidInput         Category = "invalid_input"
	CategoryTimeout              Category = "timeout"
	CategoryBothModalitiesFailed Category = "both_modalities_failed"
	CategoryUnknown              Category = "unknown"
)

// bothFailedSentinel prefixes the text of every FallbackError.
const bothFailedSentinel = "both video and audio analysis failed"

// signatures are checked in order. Numeric status codes must stand alone so
// that hex ids and file paths do not match.
var signatures = []struct {
	category Category
	pattern  *regexp.Regexp
}{
	{CategoryPermissionDenied, regexp.MustCompile(`(?i)\b403\b|permission_denied|leaked`)},
	{CategoryQuotaExceeded, regexp.MustCompile(`(?i)\b429\b|quota_exceeded`)},
	{CategoryInvalidInput, regexp.MustCompile(`(?i)\b400\b|invalid_argument`)},
	{CategoryTimeout, regexp.MustCompile(`(?i)timeout`)},
	{CategoryBothModalitiesFailed, regexp.MustCompile(`(?i)` + bothFailedSentinel)},
}

var messages = map[Category]string{
	CategoryPermissionDenied:     "AI service is currently unavailable. Please contact support.",
	CategoryQuotaExceeded:        "Service limit reached. Please try again in a few minutes.",
	CategoryInvalidInput:         "Video format issue. Please try recording again.",
	CategoryTimeout:              "Analysis took too long. Please try with a shorter video.",
	CategoryBothModalitiesFailed: "Unable to process your video. Try recording in a different format.",
	CategoryUnknown:              "Unable to analyze your response. Please try again.",
}

// Classify maps raw error text to a Category by case-insensitive matching
// against known backend error signatures.
func Classify(text string) Category {
	for _, sig := range signatures {
		if sig.pattern.MatchString(text) {
			return sig.category
		}
	}
	return CategoryUnknown
}

// ClassifyError classifies err. A context deadline anywhere in the chain is
// always a timeout. A FallbackError is classified by its video cause only.
func ClassifyError(err error) Category {
	if err == nil {
		return CategoryUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTimeout
	}
	var fb *FallbackError
	if errors.As(err, &fb) {
		return Classify(fb.summary())
	}
	return Classify(err.Error())
}

// Message returns the fixed sentence shown to the user for c.
func (c Category) Message() string {
	if m, ok := messages[c]; ok {
		return m
	}
	return messages[CategoryUnknown]
}

// HTTPStatus returns the response status for a backend failure of category c.
// Upload validation failures are answered with 400 before classification.
func (c Category) HTTPStatus() int {
	switch c {
	case CategoryPermissionDenied, CategoryQuotaExceeded:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
