package models

import "strings"

// FilterRule decides which entries qualify for processing.
// Suffix comparisons are case-insensitive and exclusions win over inclusions.
// A rule is built once per run and never mutated during traversal.
type FilterRule struct {
	// IncludeSuffixes limits processing to these suffixes (empty = all non-excluded files)
	IncludeSuffixes map[string]bool
	// ExcludeSuffixes are never processed
	ExcludeSuffixes map[string]bool
	// ExcludeDirs are directory names the walker never descends into
	ExcludeDirs map[string]bool
	// FollowSymlinks allows symlinks to files to be processed
	FollowSymlinks bool
	// ExcludeHidden skips dot-files and never descends into dot-directories
	ExcludeHidden bool
	// RespectGitignore prunes paths matched by the root's .gitignore
	RespectGitignore bool
	// MaxDepth limits recursion depth (0 = unlimited, 1 = root directory only)
	MaxDepth int
	// MinSize skips files smaller than this many bytes (0 = no lower bound)
	MinSize int64
	// MaxSize skips files larger than this many bytes (0 = no upper bound)
	MaxSize int64
}

// RuleOptions is the caller-facing description of a FilterRule.
type RuleOptions struct {
	Include          []string
	Exclude          []string
	ExcludeDirs      []string
	FollowSymlinks   bool
	ExcludeHidden    bool
	RespectGitignore bool
	MaxDepth         int
	MinSize          int64
	MaxSize          int64
}

// NewFilterRule normalizes opts into a FilterRule. Suffixes are lowercased and
// given a leading dot, so "MD", ".md" and "md" are equivalent.
func NewFilterRule(opts RuleOptions) FilterRule {
	rule := FilterRule{
		IncludeSuffixes:  suffixSet(opts.Include),
		ExcludeSuffixes:  suffixSet(opts.Exclude),
		ExcludeDirs:      make(map[string]bool, len(opts.ExcludeDirs)),
		FollowSymlinks:   opts.FollowSymlinks,
		ExcludeHidden:    opts.ExcludeHidden,
		RespectGitignore: opts.RespectGitignore,
		MaxDepth:         opts.MaxDepth,
		MinSize:          opts.MinSize,
		MaxSize:          opts.MaxSize,
	}
	for _, dir := range opts.ExcludeDirs {
		dir = strings.TrimSpace(dir)
		if dir != "" {
			rule.ExcludeDirs[dir] = true
		}
	}
	return rule
}

// NormalizeSuffix lowercases s and ensures it starts with a dot.
func NormalizeSuffix(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	if !strings.HasPrefix(s, ".") {
		s = "." + s
	}
	return s
}

func suffixSet(suffixes []string) map[string]bool {
	set := make(map[string]bool, len(suffixes))
	for _, s := range suffixes {
		if n := NormalizeSuffix(s); n != "" {
			set[n] = true
		}
	}
	return set
}
