// Package facade is the thin, read-only adapter around the host parser
// that the rest of the extraction core is allowed to see. It exposes only
// what §4.1 of the specification calls for: source files with full
// original text, a syntax tree with positional nodes, and a symbol
// resolution oracle (declaration lookup, alias following, export
// enumeration). The underlying grammar (tree-sitter's TypeScript/JavaScript
// grammars, via pkg/parser) is treated as a fixed external engine — this
// package supplies the symbol table tree-sitter itself does not build.
package facade

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/apilens/apilens/pkg/parser"
	"github.com/apilens/apilens/pkg/parser/queries"
)

// SourceFile is one parsed module: its path, full original text, and
// syntax tree. Spans borrow (buffer, startIndex, endIndex) triples from
// Text and must not outlive the Program that owns it.
type SourceFile struct {
	Path string
	Text []byte
	Tree *ts.Tree
	Root *ts.Node

	program *Program
	scope   *fileScope
}

// Program is the compiler façade (C1): a closed set of loaded source
// files plus the symbol table built over them. It is read-only from the
// analyzer's point of view — all mutation happens while files are being
// added, before analysis begins.
type Program struct {
	mu    sync.RWMutex
	files map[string]*SourceFile

	parserManager *parser.ParserManager
	queryManager  *queries.QueryManager
	logger        *slog.Logger
}

// NewProgram creates an empty façade. The parser/query managers are owned
// by the caller and must outlive the Program.
func NewProgram(pm *parser.ParserManager, qm *queries.QueryManager, logger *slog.Logger) *Program {
	if logger == nil {
		logger = slog.Default()
	}
	return &Program{
		files:         make(map[string]*SourceFile),
		parserManager: pm,
		queryManager:  qm,
		logger:        logger,
	}
}

// AddFile parses source and adds it to the program under path. path is
// used both as a map key and to resolve relative import specifiers from
// other files, so it should be a stable, normalized identifier (typically
// an absolute filesystem path).
func (p *Program) AddFile(path string, source []byte) (*SourceFile, error) {
	lang := parser.DetectLanguage(path)
	if lang == parser.LanguageUnknown {
		return nil, fmt.Errorf("facade: unsupported source file %s", path)
	}

	tree, err := p.parserManager.Parse(source, lang, parser.IsTSXFile(path))
	if err != nil {
		return nil, fmt.Errorf("facade: parse %s: %w", path, err)
	}
	root := tree.RootNode()

	sf := &SourceFile{
		Path:    path,
		Text:    source,
		Tree:    tree,
		Root:    root,
		program: p,
	}

	p.mu.Lock()
	p.files[normalizePath(path)] = sf
	p.mu.Unlock()

	return sf, nil
}

// File returns a previously added source file by path, or nil.
func (p *Program) File(path string) *SourceFile {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.files[normalizePath(path)]
}

// Close releases every parsed tree. The Program cannot be used afterward.
func (p *Program) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, sf := range p.files {
		if sf.Tree != nil {
			sf.Tree.Close()
		}
	}
	p.files = nil
}

func normalizePath(path string) string {
	return filepath.ToSlash(filepath.Clean(path))
}

func trimQuotes(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'' || s[0] == '`') {
		return s[1 : len(s)-1]
	}
	return s
}
