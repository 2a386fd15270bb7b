package watcher

import (
	"path/filepath"
	"strings"

	"csguard/internal/core/config/helpers"
	"csguard/internal/shared/util"

	"github.com/gobwas/glob"
)

// Filter decides which directories are descended into and which files are
// analyzed. Patterns containing a separator match the slash path relative
// to the watch root; other patterns match the base name.
type Filter struct {
	dirs       []glob.Glob
	dirPaths   []glob.Glob
	files      []glob.Glob
	filePaths  []glob.Glob
	extensions map[string]bool
}

func NewFilter(excludeDirs, excludeFiles, extensions []string) (*Filter, error) {
	f := &Filter{extensions: make(map[string]bool, len(extensions))}
	var err error
	if f.dirs, f.dirPaths, err = split(excludeDirs, "exclude.dirs"); err != nil {
		return nil, err
	}
	if f.files, f.filePaths, err = split(excludeFiles, "exclude.files"); err != nil {
		return nil, err
	}
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" {
			f.extensions[ext] = true
		}
	}
	return f, nil
}

func split(patterns []string, label string) (names, paths []glob.Glob, err error) {
	var byName, byPath []string
	for _, p := range patterns {
		if util.ContainsPathSeparator(p) {
			byPath = append(byPath, util.NormalizePatternPath(p))
		} else {
			byName = append(byName, p)
		}
	}
	if names, err = helpers.CompileGlobs(byName, label); err != nil {
		return nil, nil, err
	}
	if paths, err = helpers.CompileGlobs(byPath, label); err != nil {
		return nil, nil, err
	}
	return names, paths, nil
}

// SkipDir reports whether the directory at path, below root, is excluded.
func (f *Filter) SkipDir(root, path string) bool {
	if filepath.Clean(root) == filepath.Clean(path) {
		return false
	}
	return helpers.MatchAny(f.dirs, filepath.Base(path)) ||
		helpers.MatchAny(f.dirPaths, util.RelSlash(root, path))
}

// Accept reports whether the file at path, below root, should be analyzed.
func (f *Filter) Accept(root, path string) bool {
	base := filepath.Base(path)
	if len(f.extensions) > 0 && !f.extensions[strings.ToLower(filepath.Ext(base))] {
		return false
	}
	if helpers.MatchAny(f.files, base) || helpers.MatchAny(f.filePaths, util.RelSlash(root, path)) {
		return false
	}
	rel := util.RelSlash(root, filepath.Dir(path))
	if rel == "." {
		return true
	}
	prefix := ""
	for _, part := range strings.Split(rel, "/") {
		if part == "" {
			continue
		}
		prefix = strings.TrimPrefix(prefix+"/"+part, "/")
		if helpers.MatchAny(f.dirs, part) || helpers.MatchAny(f.dirPaths, prefix) {
			return false
		}
	}
	return true
}
