// Package moderation decides whether message content may be posted.
package moderation

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Checker is a fast, synchronous content predicate.
type Checker interface {
	IsAcceptable(content string) bool
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(content string) bool

func (f CheckerFunc) IsAcceptable(content string) bool { return f(content) }

// DefaultPatterns is the baseline word list.
var DefaultPatterns = []string{
	`\b(fuck|shit|ass|bitch)\b`,
}

// PatternChecker rejects content matching any of its patterns. Markup is
// stripped first so tags cannot split a word past the matcher.
type PatternChecker struct {
	patterns []*regexp.Regexp
	strip    *bluemonday.Policy
}

// NewPatternChecker compiles patterns case-insensitively.
func NewPatternChecker(patterns []string) (*PatternChecker, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(`(?i)` + p)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, re)
	}
	return &PatternChecker{
		patterns: compiled,
		strip:    bluemonday.StrictPolicy(),
	}, nil
}

// NewDefault returns a PatternChecker over DefaultPatterns.
func NewDefault() *PatternChecker {
	c, err := NewPatternChecker(DefaultPatterns)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *PatternChecker) IsAcceptable(content string) bool {
	text := normalize(c.strip.Sanitize(content))
	for _, re := range c.patterns {
		if re.MatchString(text) {
			return false
		}
	}
	return true
}

// normalize undoes the entity escaping bluemonday applies and collapses
// whitespace.
func normalize(s string) string {
	return strings.Join(strings.Fields(html.UnescapeString(s)), " ")
}
