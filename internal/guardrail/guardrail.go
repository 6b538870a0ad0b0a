// Package guardrail holds the entry and exit safety filters of the chat
// pipeline. Both filters are pure and total: any input, including the empty
// string, yields a verdict without error.
package guardrail

import (
	"regexp"
	"strings"
	"unicode"
)

// TopicFilter decides whether a user question touches a disallowed subject.
type TopicFilter interface {
	Blocked(text string) bool
}

// SafetyFilter decides whether generated text is unfit to show the user.
type SafetyFilter interface {
	Unsafe(text string) bool
}

var (
	defaultTopics   = []string{"presidente", "política", "religião", "sexo", "partido"}
	defaultPatterns = []*regexp.Regexp{
		regexp.MustCompile(`o\s+que\s+o\s+melhor\s+presidente\s+falou`),
	}
	defaultProfanity = []string{"bosta", "merda", "puta", "viado", "caralho", "foda-se"}
)

// Keywords blocks questions containing any denylisted subject, either as a
// case-insensitive substring or through a pattern match.
type Keywords struct {
	terms    []string
	patterns []*regexp.Regexp
}

// NewKeywords builds a topic filter. Patterns are matched against the
// lowercased text.
func NewKeywords(terms []string, patterns ...*regexp.Regexp) *Keywords {
	k := &Keywords{patterns: patterns}
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			k.terms = append(k.terms, t)
		}
	}
	return k
}

// DefaultKeywords returns the product's topic denylist.
func DefaultKeywords() *Keywords {
	return NewKeywords(defaultTopics, defaultPatterns...)
}

func (k *Keywords) Blocked(text string) bool {
	lower := strings.ToLower(text)
	if lower == "" {
		return false
	}
	for _, t := range k.terms {
		if strings.Contains(lower, t) {
			return true
		}
	}
	for _, p := range k.patterns {
		if p.MatchString(lower) {
			return true
		}
	}
	return false
}

// Profanity flags text containing a denylisted word as a whole token after
// punctuation is stripped and case is folded.
type Profanity struct {
	words map[string]struct{}
}

// NewProfanity builds a safety filter. Entries are normalized the same way
// as the inspected text, so "foda-se" matches "Foda-se!".
func NewProfanity(words []string) *Profanity {
	p := &Profanity{words: make(map[string]struct{}, len(words))}
	for _, w := range words {
		for _, tok := range tokenize(w) {
			p.words[tok] = struct{}{}
		}
	}
	return p
}

// DefaultProfanity returns the product's profanity list.
func DefaultProfanity() *Profanity {
	return NewProfanity(defaultProfanity)
}

func (p *Profanity) Unsafe(text string) bool {
	for _, tok := range tokenize(text) {
		if _, ok := p.words[tok]; ok {
			return true
		}
	}
	return false
}

var (
	defaultTopicFilter  = DefaultKeywords()
	defaultSafetyFilter = DefaultProfanity()
)

// CheckInput reports whether the question trips the default topic denylist.
func CheckInput(text string) bool {
	return defaultTopicFilter.Blocked(text)
}

// CheckOutput reports whether the reply trips the default profanity list.
func CheckOutput(text string) bool {
	return defaultSafetyFilter.Unsafe(text)
}

// tokenize drops every rune that is not a letter, digit, underscore or
// space, lowercases, and splits on whitespace.
func tokenize(text string) []string {
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || r == '_' {
			return unicode.ToLower(r)
		}
		return -1
	}, text)
	return strings.Fields(stripped)
}
