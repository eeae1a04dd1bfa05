package utils

import "strings"

// MatchPermission reports whether a granted permission pattern covers the
// requested key. Keys are dot-separated ("workers.edit"). Patterns may use
// '*' as a segment wildcard: "workers.*" covers "workers.edit" and
// "workers.hours.view", while a bare "*" covers everything.
func MatchPermission(key, pattern string) bool {
	if pattern == "*" || pattern == key {
		return true
	}
	if !strings.Contains(pattern, "*") {
		return false
	}
	return matchSegments(strings.Split(key, "."), strings.Split(pattern, "."))
}

func matchSegments(key, pattern []string) bool {
	for i, seg := range pattern {
		if seg == "*" {
			// Trailing wildcard covers the remaining depth.
			if i == len(pattern)-1 {
				return len(key) > i
			}
			if i >= len(key) {
				return false
			}
			continue
		}
		if i >= len(key) || key[i] != seg {
			return false
		}
	}
	return len(key) == len(pattern)
}
