package util

import (
	"strconv"
	"strings"
	"unicode"
)

// Slug lowercases s and keeps only letters and digits.
func Slug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DeriveKey builds a client key from name (or prefix when the name has no
// usable characters), appending 2, 3, ... until it is not in taken.
// Reserved keys are treated as taken.
func DeriveKey(name, prefix string, taken map[string]bool, reserved ...string) string {
	base := Slug(name)
	if base == "" {
		base = Slug(prefix)
	}
	if base == "" {
		base = "client"
	}

	used := func(k string) bool {
		if taken[k] {
			return true
		}
		for _, r := range reserved {
			if r == k {
				return true
			}
		}
		return false
	}

	candidate := base
	for n := 2; used(candidate); n++ {
		candidate = base + strconv.Itoa(n)
	}
	return candidate
}
