// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package slug turns arbitrary Unicode input into ASCII account handles.
//
// # Usage
//
// Handles are the public identifier of an account (e.g., "tai.bui"). Users
// type them freely on the profile completion screen, so input is folded to
// the canonical form before it is validated and stored.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// disallowed matches any run of characters outside the handle alphabet.
	disallowed = regexp.MustCompile(`[^a-z0-9_.]+`)
	// multiSeparator collapses runs of underscores and dots.
	multiSeparator = regexp.MustCompile(`[_.]{2,}`)
)

// Handle converts an arbitrary Unicode string into a handle.
//
// # Transformation Pipeline
//
// 1. Normalizes to NFD and removes combining marks (é → e).
// 2. Converts to lowercase.
// 3. Replaces characters outside [a-z0-9_.] with an underscore.
// 4. Collapses separator runs and trims them from both ends.
//
// The result may be empty; callers validate it like any other input.
func Handle(s string) string {
	t := transform.Chain(norm.NFD, transform.RemoveFunc(isMn))
	result, _, _ := transform.String(t, s)

	result = strings.ToLower(strings.TrimSpace(result))

	result = disallowed.ReplaceAllString(result, "_")
	result = multiSeparator.ReplaceAllStringFunc(result, func(run string) string {
		return run[:1]
	})

	return strings.Trim(result, "_.")
}

// isMn reports whether r is a Unicode non-spacing mark (e.g., accents).
func isMn(r rune) bool {
	return unicode.Is(unicode.Mn, r)
}
