// Package safety implements the content and destination checks applied to
// tool arguments before anything reaches the external store.
package safety

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ContentResult is the outcome of a content check.
type ContentResult struct {
	IsValid    bool     `json:"isValid"`
	Violations []string `json:"violations"`
	Message    string   `json:"message"`
}

// ContentValidator matches text against a forbidden-term list.
type ContentValidator struct {
	terms []string
}

// NewContentValidator returns a validator for terms, checked in the given order.
// Terms are lower-cased once here.
func NewContentValidator(terms []string) *ContentValidator {
	lower := cases.Lower(language.Und)
	normalized := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			normalized = append(normalized, lower.String(t))
		}
	}
	return &ContentValidator{terms: normalized}
}

// Validate reports every forbidden term that occurs as a substring of text,
// ignoring case. Matching is not word-aware: "failures" contains "failure".
func (v *ContentValidator) Validate(text string) ContentResult {
	// cases.Caser keeps state, so each call gets its own.
	lowered := cases.Lower(language.Und).String(text)

	violations := []string{}
	for _, term := range v.terms {
		if strings.Contains(lowered, term) {
			violations = append(violations, term)
		}
	}

	if len(violations) > 0 {
		return ContentResult{
			IsValid:    false,
			Violations: violations,
			Message:    fmt.Sprintf("Content violates Jen OS safety rules. Forbidden words found: %s", strings.Join(violations, ", ")),
		}
	}
	return ContentResult{IsValid: true, Violations: violations, Message: "Content passes validation"}
}
