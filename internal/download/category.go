package download

import (
	"slices"
	"strings"
)

// MatchMode selects how a category's folder name is located inside an object key.
type MatchMode string

const (
	// MatchSegment requires a path segment between the user id and the
	// filename to equal the folder name.
	MatchSegment MatchMode = "segment"
	// MatchSubstring accepts the folder name anywhere in the key. A folder
	// called "profile" also matches "users/profiler/..." in this mode.
	MatchSubstring MatchMode = "substring"
)

// Category is one kind of user data pulled from the bucket.
type Category struct {
	Name       string
	Folder     string
	Extensions []string
	OutputDir  string
}

// Match reports whether key belongs to the category and, if so, extracts the
// owning user id and the file name from a key shaped like
// users/<user_id>/.../<filename>.
func (c Category) Match(key string, mode MatchMode) (userID, filename string, ok bool) {
	if !c.hasExtension(key) {
		return "", "", false
	}

	parts := strings.Split(key, "/")
	if len(parts) < 3 {
		return "", "", false
	}

	switch mode {
	case MatchSubstring:
		if !strings.Contains(key, c.Folder) {
			return "", "", false
		}
	default:
		if !slices.Contains(parts[2:len(parts)-1], c.Folder) {
			return "", "", false
		}
	}

	userID, filename = parts[1], parts[len(parts)-1]
	if !safeSegment(userID) || !safeSegment(filename) {
		return "", "", false
	}
	return userID, filename, true
}

func (c Category) hasExtension(key string) bool {
	for _, ext := range c.Extensions {
		if strings.HasSuffix(key, ext) {
			return true
		}
	}
	return false
}

// safeSegment rejects names that would escape the output directory.
func safeSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsRune(s, '\\')
}
