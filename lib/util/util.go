// Package util contains small helpers shared by the service packages.
package util

// In reports whether s is one of the strings in ss.
func In(ss []string, s string) bool {
	for i := range ss {
		if ss[i] == s {
			return true
		}
	}

	return false
}
