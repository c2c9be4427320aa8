package security

import (
	"os"
	"path/filepath"
	"strings"
)

// PathAccessChecker checks path arguments against the restricted list and
// rejects traversal that escapes upwards.
type PathAccessChecker struct {
	restricted     []string
	maxParentDepth int
}

// NewPathAccessChecker creates a new path checker.
func NewPathAccessChecker(policy *SecurityPolicy) *PathAccessChecker {
	depth := policy.MaxParentDepth
	if depth < 0 {
		depth = 0
	}
	return &PathAccessChecker{
		restricted:     policy.RestrictedPaths,
		maxParentDepth: depth,
	}
}

// IsRestricted checks if a path is restricted. Relative paths are resolved
// against baseDir; with an empty baseDir only rooted paths are checked.
func (pc *PathAccessChecker) IsRestricted(checkPath, baseDir string) bool {
	if len(pc.restricted) == 0 {
		return false
	}
	if !isRooted(checkPath) && baseDir == "" {
		return false
	}

	canonicalPath, err := pc.canonicalizePath(checkPath, baseDir)
	if err != nil {
		return false
	}

	for _, restricted := range pc.restricted {
		canonicalRestricted, err := pc.canonicalizePath(restricted, "")
		if err != nil {
			continue
		}

		if strings.HasPrefix(canonicalPath, canonicalRestricted+string(filepath.Separator)) ||
			canonicalPath == canonicalRestricted {
			return true
		}
	}

	return false
}

// EscapesRoot reports whether arg uses ".." to climb out of its anchor: a
// rooted path with any ".." element, or a relative path climbing more than
// the configured depth.
func (pc *PathAccessChecker) EscapesRoot(arg string) bool {
	elems := splitPath(arg)
	hasParent := false
	for _, e := range elems {
		if e == ".." {
			hasParent = true
			break
		}
	}
	if !hasParent {
		return false
	}
	if isRooted(arg) {
		return true
	}

	depth, lowest := 0, 0
	for _, e := range elems {
		switch e {
		case "", ".":
		case "..":
			depth--
			if depth < lowest {
				lowest = depth
			}
		default:
			depth++
		}
	}
	return -lowest > pc.maxParentDepth
}

// ExtractPaths returns the arguments of a stage that may reference the
// filesystem. Flags are skipped, except the value of --flag=value.
func (pc *PathAccessChecker) ExtractPaths(tokens []string) []string {
	var paths []string
	if len(tokens) < 2 {
		return paths
	}

	for _, arg := range tokens[1:] {
		if strings.HasPrefix(arg, "-") {
			if idx := strings.Index(arg, "="); idx >= 0 && idx+1 < len(arg) {
				paths = append(paths, arg[idx+1:])
			}
			continue
		}
		paths = append(paths, arg)
	}
	return paths
}

// canonicalizePath expands home directory, converts to absolute path,
// and resolves symlinks to prevent bypass via symlink attacks.
func (pc *PathAccessChecker) canonicalizePath(path, baseDir string) (string, error) {
	expandedPath := path
	if expandedPath == "~" || strings.HasPrefix(expandedPath, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		expandedPath = filepath.Join(home, strings.TrimPrefix(path, "~"))
	} else if !filepath.IsAbs(expandedPath) && baseDir != "" {
		expandedPath = filepath.Join(baseDir, expandedPath)
	}

	absPath, err := filepath.Abs(expandedPath)
	if err != nil {
		return "", err
	}

	canonicalPath, err := pc.resolveSymlinksWalkUp(absPath)
	if err != nil {
		return absPath, nil
	}

	return canonicalPath, nil
}

// resolveSymlinksWalkUp walks up the directory tree resolving symlinks
// until we find a path that exists, then rebuilds the path.
func (pc *PathAccessChecker) resolveSymlinksWalkUp(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return resolved, nil
	}

	parent := filepath.Dir(path)
	base := filepath.Base(path)

	if parent == path {
		return path, nil
	}

	resolvedParent, err := pc.resolveSymlinksWalkUp(parent)
	if err != nil {
		return "", err
	}

	return filepath.Join(resolvedParent, base), nil
}

// isRooted reports whether p is anchored at the filesystem root, the home
// directory or a Windows drive.
func isRooted(p string) bool {
	if strings.HasPrefix(p, "/") || strings.HasPrefix(p, `\`) || strings.HasPrefix(p, "~") {
		return true
	}
	return len(p) >= 2 && p[1] == ':' &&
		((p[0] >= 'a' && p[0] <= 'z') || (p[0] >= 'A' && p[0] <= 'Z'))
}

func splitPath(p string) []string {
	return strings.FieldsFunc(p, func(r rune) bool {
		return r == '/' || r == '\\'
	})
}
