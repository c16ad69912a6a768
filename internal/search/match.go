// Package search provides the case-insensitive text matching used by the
// catalog's category filter, category statistics, and name search.
//
// Folding goes through golang.org/x/text/cases with an undetermined language
// tag, so it lowercases consistently for non-ASCII names as well. The
// package holds no state and is safe for concurrent use.
package search

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Fold returns the lowercase form of s used for comparisons and as the key
// of category statistics.
func Fold(s string) string {
	// A cases.Caser is stateful; build one per call.
	return cases.Lower(language.Und).String(s)
}

// Equal reports whether a and b match case-insensitively.
func Equal(a, b string) bool {
	return Fold(a) == Fold(b)
}

// Contains reports whether needle occurs in haystack, ignoring case.
// An empty needle matches everything.
func Contains(haystack, needle string) bool {
	return strings.Contains(Fold(haystack), Fold(needle))
}

// Filter returns the items for which pred(key(item)) is true, preserving
// input order. The result is never nil.
func Filter[T any](items []T, key func(T) string, pred func(string) bool) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if pred(key(it)) {
			out = append(out, it)
		}
	}
	return out
}

// CountBy groups items by the folded key and counts each group.
func CountBy[T any](items []T, key func(T) string) map[string]int {
	out := make(map[string]int)
	for _, it := range items {
		out[Fold(key(it))]++
	}
	return out
}
