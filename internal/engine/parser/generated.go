package parser

import (
	"bytes"
	"path/filepath"
	"strings"
)

var generatedSuffixes = []string{".g.cs", ".g.i.cs", ".designer.cs", ".generated.cs"}

var generatedMarker = []byte("<auto-generated")

// IsGeneratedFile reports whether the file name or the comment header of src
// marks the file as generated code.
func IsGeneratedFile(path string, src []byte) bool {
	base := strings.ToLower(filepath.Base(path))
	for _, suffix := range generatedSuffixes {
		if strings.HasSuffix(base, suffix) {
			return true
		}
	}
	return hasGeneratedHeader(src)
}

// hasGeneratedHeader scans the comments before the first line of code.
func hasGeneratedHeader(src []byte) bool {
	rest := bytes.TrimPrefix(src, []byte("\xef\xbb\xbf"))
	for {
		rest = bytes.TrimLeft(rest, " \t\r\n")
		switch {
		case bytes.HasPrefix(rest, []byte("//")):
			line, next, _ := bytes.Cut(rest, []byte("\n"))
			if containsMarker(line) {
				return true
			}
			rest = next
		case bytes.HasPrefix(rest, []byte("/*")):
			end := bytes.Index(rest, []byte("*/"))
			if end < 0 {
				return containsMarker(rest)
			}
			if containsMarker(rest[:end]) {
				return true
			}
			rest = rest[end+2:]
		default:
			return false
		}
	}
}

func containsMarker(b []byte) bool {
	return bytes.Contains(bytes.ToLower(b), generatedMarker)
}

var generatedAttributes = map[string]bool{
	"GeneratedCode":     true,
	"CompilerGenerated": true,
}

// IsGeneratedAttribute reports whether an attribute name, possibly
// qualified or spelled with the Attribute suffix, marks generated code.
func IsGeneratedAttribute(name string) bool {
	if i := strings.LastIndexAny(name, ".:"); i >= 0 {
		name = name[i+1:]
	}
	return generatedAttributes[strings.TrimSuffix(strings.TrimSpace(name), "Attribute")]
}
