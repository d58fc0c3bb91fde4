package core

import "strings"

// CleanRelPath validates a crate-relative path from user input and returns it
// with a trailing slash removed. Validation rejects unsafe shapes instead of
// canonicalizing them; canonicalization would hide escape attempts.
//
// The empty path is valid and names the crate root.
func CleanRelPath(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	if strings.HasPrefix(p, "/") {
		return "", BadPath(p, "absolute paths are not allowed")
	}
	if strings.Contains(p, "\\") {
		return "", BadPath(p, "backslashes are not allowed")
	}
	trimmed := strings.TrimSuffix(p, "/")
	if trimmed == "" {
		return "", BadPath(p, "empty segment")
	}
	for _, seg := range strings.Split(trimmed, "/") {
		switch seg {
		case "":
			return "", BadPath(p, "empty segment")
		case ".", "..":
			return "", BadPath(p, "dot segments are not allowed")
		}
	}
	return trimmed, nil
}

// SafeEntryPath reports whether a tarball entry path is safe to retain:
// relative, forward-slash separated, and free of dot segments.
func SafeEntryPath(p string) bool {
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, "\\") {
		return false
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return false
		}
	}
	return true
}

// UnderPrefix reports whether path lies under the directory prefix. The empty
// prefix matches everything; an exact match counts.
func UnderPrefix(path, prefix string) bool {
	if prefix == "" {
		return true
	}
	prefix = strings.TrimSuffix(prefix, "/")
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
