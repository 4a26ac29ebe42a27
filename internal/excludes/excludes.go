// Package excludes implements the ordered, first-match exclude-rule
// list consulted by a read job before it descends into a directory.
// Grounded on the teacher's directory-skip list (scanner.ScanOptions
// .ExcludePatterns in the original godu sources) generalized to the
// three pattern syntaxes the specification calls for, with Wildcard
// matching delegated to gobwas/glob the way kopia and mutagen do for
// their own ignore-pattern matching.
package excludes

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gobwas/glob"
)

// Syntax selects how Pattern is interpreted.
type Syntax int

const (
	// RegExp interprets Pattern as a Go regular expression.
	RegExp Syntax = iota
	// Wildcard interprets Pattern as a shell glob (*, ?, [...]).
	Wildcard
	// FixedString matches Pattern literally, with no metacharacters.
	FixedString
)

func (s Syntax) String() string {
	switch s {
	case RegExp:
		return "RegExp"
	case Wildcard:
		return "Wildcard"
	case FixedString:
		return "FixedString"
	default:
		return "Unknown"
	}
}

// Rule is a single exclude rule.
type Rule struct {
	Pattern           string
	Syntax            Syntax
	CaseSensitive     bool
	Enabled           bool
	UseFullPath       bool // match against the full path rather than just the name
	CheckAnyFileChild bool // also exclude dirs where any direct non-dir child matches

	matcher matcher
}

type matcher interface {
	MatchString(s string) bool
}

type fixedStringMatcher struct {
	pattern       string
	caseSensitive bool
}

func (m fixedStringMatcher) MatchString(s string) bool {
	if m.caseSensitive {
		return s == m.pattern
	}
	return strings.EqualFold(s, m.pattern)
}

type globMatcher struct {
	g             glob.Glob
	caseSensitive bool
}

func (m globMatcher) MatchString(s string) bool {
	if !m.caseSensitive {
		s = strings.ToLower(s)
	}
	return m.g.Match(s)
}

// Compile builds the rule's internal matcher. Must be called (directly
// or via List.Compile) before Match/MatchDirectChildren are used.
func (r *Rule) Compile() error {
	switch r.Syntax {
	case RegExp:
		pattern := `\A(?:` + r.Pattern + `)\z`
		if !r.CaseSensitive {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("excludes: invalid regexp %q: %w", r.Pattern, err)
		}
		r.matcher = re
	case Wildcard:
		pattern := r.Pattern
		if !r.CaseSensitive {
			pattern = strings.ToLower(pattern)
		}
		g, err := glob.Compile(pattern)
		if err != nil {
			return fmt.Errorf("excludes: invalid wildcard pattern %q: %w", r.Pattern, err)
		}
		r.matcher = globMatcher{g: g, caseSensitive: r.CaseSensitive}
	case FixedString:
		r.matcher = fixedStringMatcher{pattern: r.Pattern, caseSensitive: r.CaseSensitive}
	default:
		return fmt.Errorf("excludes: unknown syntax %v", r.Syntax)
	}
	return nil
}

// Match reports whether the rule, if enabled, matches fullPath or name
// (chosen by UseFullPath).
func (r *Rule) Match(fullPath, name string) bool {
	if !r.Enabled || r.matcher == nil {
		return false
	}
	subject := name
	if r.UseFullPath {
		subject = fullPath
	}
	return r.matcher.MatchString(subject)
}

// DirEntry is the minimal view of a non-directory direct child that
// MatchDirectChildren needs; readjob's childEntry satisfies it from a
// directory listing, so this package never imports the model package.
type DirEntry interface {
	Name() string
	FullPath() string
}

// MatchDirectChildren returns false unless CheckAnyFileChild is set;
// otherwise it returns true as soon as any of children matches.
func (r *Rule) MatchDirectChildren(children []DirEntry) bool {
	if !r.CheckAnyFileChild {
		return false
	}
	for _, c := range children {
		if r.Match(c.FullPath(), c.Name()) {
			return true
		}
	}
	return false
}

// List is an ordered, first-match-wins collection of rules.
type List struct {
	Rules []*Rule
}

// Compile compiles every rule in the list, stopping at the first error.
func (l *List) Compile() error {
	for i, r := range l.Rules {
		if err := r.Compile(); err != nil {
			return fmt.Errorf("excludes: rule %d: %w", i, err)
		}
	}
	return nil
}

// Match returns the first rule (in list order) that matches, or nil.
// A nil *List (no exclude rules configured) never matches.
func (l *List) Match(fullPath, name string) *Rule {
	if l == nil {
		return nil
	}
	for _, r := range l.Rules {
		if r.Match(fullPath, name) {
			return r
		}
	}
	return nil
}

// HasAnyFileChildRules reports whether any rule in the list uses
// CheckAnyFileChild, i.e. whether a caller needs to list a directory's
// children at all before it can decide whether the directory itself is
// excluded. Lets a caller skip that listing entirely in the common case
// of no such rules.
func (l *List) HasAnyFileChildRules() bool {
	if l == nil {
		return false
	}
	for _, r := range l.Rules {
		if r.Enabled && r.CheckAnyFileChild {
			return true
		}
	}
	return false
}

// MatchAnyChild returns the first rule whose CheckAnyFileChild mode
// matches one of children, or nil. A nil *List never matches.
func (l *List) MatchAnyChild(children []DirEntry) *Rule {
	if l == nil {
		return nil
	}
	for _, r := range l.Rules {
		if r.MatchDirectChildren(children) {
			return r
		}
	}
	return nil
}
