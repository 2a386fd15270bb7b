// # internal/engine/parser/parser.go
package parser

import (
	"log/slog"
	"path/filepath"
	"strings"

	"csguard/internal/core/errors"
	"csguard/internal/engine/syntax"

	sitter "github.com/tree-sitter/go-tree-sitter"
	csharp "github.com/tree-sitter/tree-sitter-c-sharp/bindings/go"
)

// Extensions lists the file extensions the parser accepts.
var Extensions = []string{".cs"}

func csharpLanguage() *sitter.Language {
	return sitter.NewLanguage(csharp.Language())
}

// Parser turns C# source into syntax trees. It is safe for concurrent use.
type Parser struct {
	pool *ParserPool
}

func NewParser() *Parser {
	return &Parser{pool: NewParserPool(csharpLanguage())}
}

// Supports reports whether path names a C# source file.
func (p *Parser) Supports(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Pool exposes the parser pool for lease metrics.
func (p *Parser) Pool() *ParserPool {
	return p.pool
}

// ParseFile parses content as the C# file at path. Syntax errors do not fail
// the parse: error recovery still yields a usable tree and the rules run over
// whatever was recognized.
func (p *Parser) ParseFile(path string, content []byte) (*syntax.Tree, error) {
	if !p.Supports(path) {
		return nil, errors.AddContext(errors.New(errors.CodeNotSupported, "unsupported file type"), errors.CtxPath, path)
	}

	sp := p.pool.Get()
	defer p.pool.Put(sp)

	ts := sp.Parse(content, nil)
	if ts == nil {
		return nil, errors.AddContext(errors.New(errors.CodeParse, "parse failed"), errors.CtxPath, path)
	}
	defer ts.Close()

	root := ts.RootNode()
	if root.HasError() {
		slog.Debug("source contains syntax errors", "path", path)
	}

	w := newWalker(path, content)
	w.b.SetGenerated(IsGeneratedFile(path, content))
	return w.run(root), nil
}
