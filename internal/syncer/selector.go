package syncer

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gobwas/glob"
	"github.com/neurender/neurender/internal/meta"
)

// partPrefix and partSuffix frame the temporary name of a download in progress.
const (
	partPrefix = "."
	partSuffix = ".part"
)

func partName(name string) string {
	return partPrefix + name + partSuffix
}

// isSidecar reports whether rel names a metadata sidecar at any depth.
func isSidecar(rel string) bool {
	return path.Base(rel) == meta.FileName
}

// isLocalOnly reports whether a slash-separated local path is kept out of
// uploads. Staged inputs hold copies of other remote data.
func isLocalOnly(rel string) bool {
	if isSidecar(rel) {
		return true
	}
	base := path.Base(rel)
	if strings.HasPrefix(base, partPrefix) && strings.HasSuffix(base, partSuffix) {
		return true
	}
	for dir := range strings.SplitSeq(path.Dir(rel), "/") {
		if dir == meta.InputsDir {
			return true
		}
	}
	return false
}

// remoteSelector matches a selector against full object keys.
// The match is on the literal key string: '*' stops at '/', '**' crosses it,
// and no path components are interpreted. "*.txt" therefore matches "a.txt"
// but not "b/c.txt", and "**/*" needs at least one '/' in the key.
func remoteSelector(pattern string) (glob.Glob, error) {
	if pattern == "" {
		pattern = SelectAll
	}
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, fmt.Errorf("compiling selector %q: %w", pattern, err)
	}
	return g, nil
}

// localSelector matches a selector against slash-separated paths relative to
// the synced directory, with '**/' also matching zero directories.
type localSelector string

func newLocalSelector(pattern string) (localSelector, error) {
	if pattern == "" {
		pattern = SelectAll
	}
	if !doublestar.ValidatePattern(pattern) {
		return "", fmt.Errorf("invalid selector %q: %w", pattern, doublestar.ErrBadPattern)
	}
	return localSelector(pattern), nil
}

func (s localSelector) Match(rel string) bool {
	ok, _ := doublestar.Match(string(s), rel)
	return ok
}
