package treefs

import "strings"

// Path is the ordered sequence of segment names derived from an absolute
// path string. It is built per call and never persisted; applying its
// segments in order from the root via Child lookups reaches the addressed
// node, or fails at the first absent segment.
type Path []string

// SplitPath splits an absolute path on '/' and drops empty segments, so
// "", "/", and "//" all yield the root (empty) path and trailing slashes
// are ignored.
func SplitPath(s string) Path {
	parts := strings.Split(s, "/")
	p := make(Path, 0, len(parts))
	for _, seg := range parts {
		if seg != "" {
			p = append(p, seg)
		}
	}
	return p
}

// Empty reports whether the path addresses the root node.
func (p Path) Empty() bool {
	return len(p) == 0
}

// PopBack removes and returns the final segment, leaving the prefix intact.
// Used to split "directory to act within" from "name to create or remove".
// Returns "" on an empty path.
func (p *Path) PopBack() string {
	old := *p
	if len(old) == 0 {
		return ""
	}
	last := old[len(old)-1]
	*p = old[:len(old)-1]
	return last
}

func (p Path) String() string {
	return "/" + strings.Join(p, "/")
}
