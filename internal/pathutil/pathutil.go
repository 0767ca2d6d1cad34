// Package pathutil normalizes tool-reported file paths to the repo-relative
// form the landing zone joins on.
package pathutil

import (
	"path"
	"regexp"
	"strings"
)

var driveLetter = regexp.MustCompile(`^[A-Za-z]:[/\\]`)

// Normalize converts a raw tool-reported path into a clean repo-relative
// path. Absolute paths are made relative to repoRoot when they fall under
// it; backslashes become forward slashes; "./" prefixes are stripped.
func Normalize(raw, repoRoot string) string {
	p := strings.ReplaceAll(strings.TrimSpace(raw), "\\", "/")
	if p == "" {
		return ""
	}
	if driveLetter.MatchString(p) {
		p = p[2:]
	}
	root := strings.ReplaceAll(strings.TrimSpace(repoRoot), "\\", "/")
	if root != "" {
		root = strings.TrimSuffix(root, "/")
		if p == root {
			return "."
		}
		if strings.HasPrefix(p, root+"/") {
			p = p[len(root)+1:]
		}
	}
	p = strings.TrimPrefix(p, "./")
	p = path.Clean(p)
	p = strings.TrimPrefix(p, "/")
	return p
}

// IsRepoRelative reports whether p is a usable repo-relative path: non-empty,
// not absolute, no drive letter, and no traversal outside the repo.
func IsRepoRelative(p string) bool {
	if p == "" || p == "." {
		return false
	}
	if strings.HasPrefix(p, "/") || strings.HasPrefix(p, "~") {
		return false
	}
	if driveLetter.MatchString(p) {
		return false
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return false
		}
	}
	return true
}

// NormalizeDir behaves like Normalize but maps the repo root itself to ".".
func NormalizeDir(raw, repoRoot string) string {
	p := Normalize(raw, repoRoot)
	if p == "" {
		return "."
	}
	return p
}
