package helpers

import (
	"path/filepath"
	"sort"
	"strings"

	"csguard/internal/shared/util"
)

// UniqueScanRoots cleans paths to absolute form and drops duplicates and
// roots nested inside another root.
func UniqueScanRoots(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	roots := make([]string, 0, len(paths))
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		normalized := filepath.Clean(p)
		if abs, err := filepath.Abs(normalized); err == nil {
			normalized = filepath.Clean(abs)
		}
		if seen[normalized] {
			continue
		}
		seen[normalized] = true
		roots = append(roots, normalized)
	}
	sort.Strings(roots)

	out := roots[:0]
	for _, root := range roots {
		nested := false
		for _, kept := range out {
			if util.HasPathPrefix(root, kept) {
				nested = true
				break
			}
		}
		if !nested {
			out = append(out, root)
		}
	}
	return out
}

// ResolveOutputPath anchors a relative report path at root.
func ResolveOutputPath(path, root string) string {
	if path == "" {
		return ""
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(root, path)
}

func WriteArtifact(path, content string) error {
	return util.WriteFileAtomic(path, []byte(content), 0o644)
}
