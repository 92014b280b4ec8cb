package facade

import (
	"path/filepath"
	"strings"
	"sync"

	ts "github.com/tree-sitter/go-tree-sitter"
)

// fileScope is the module-level symbol table for one SourceFile: every
// top-level declared name (whether exported or not — identifier
// resolution inside the file needs both) plus every import binding
// introduced by that file's import statements.
type fileScope struct {
	sf *SourceFile

	mu       sync.Mutex
	built    bool
	bindings map[string]*Symbol
	order    []string // admission order of top-level names, source order

	exportOnce  sync.Once
	exportTable []exportEntry

	self *Symbol // synthetic symbol representing "this module as a namespace", for `import * as ns`
}

type exportEntry struct {
	name   string
	symbol *Symbol
}

func (sf *SourceFile) ensureScope() *fileScope {
	if sf.scope == nil {
		sf.scope = &fileScope{sf: sf, bindings: make(map[string]*Symbol)}
	}
	sf.scope.build()
	return sf.scope
}

func (fs *fileScope) lookup(name string) (*Symbol, bool) {
	fs.build()
	fs.mu.Lock()
	defer fs.mu.Unlock()
	b, ok := fs.bindings[name]
	return b, ok
}

func (fs *fileScope) namespaceSymbol() *Symbol {
	fs.build()
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.self == nil {
		fs.self = &Symbol{Name: filepath.Base(fs.sf.Path), File: fs.sf.Path, Kind: SymbolKindNamespace, Nominal: true}
	}
	return fs.self
}

// build performs the single top-level pass over the module body, binding
// every declared name and every import specifier. It is idempotent.
func (fs *fileScope) build() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.built {
		return
	}
	fs.built = true

	root := fs.sf.Root
	src := fs.sf.Text
	count := int(root.NamedChildCount())
	for i := 0; i < count; i++ {
		stmt := root.NamedChild(uint(i))
		fs.bindStatement(stmt, src)
	}
}

// bindStatement handles one top-level statement: a bare declaration, an
// `export ...` wrapper around one, or an import statement.
func (fs *fileScope) bindStatement(stmt *ts.Node, src []byte) {
	switch stmt.GrammarName() {
	case "import_statement":
		fs.bindImport(stmt, src)
	case "export_statement":
		fs.bindExportStatement(stmt, src)
	case "lexical_declaration", "variable_declaration":
		for i := 0; i < int(stmt.NamedChildCount()); i++ {
			fs.bindDeclaration(stmt.NamedChild(uint(i)), src)
		}
	default:
		if IsDeclarationNode(stmt) {
			fs.bindDeclaration(stmt, src)
		}
	}
}

// bindDeclaration registers (or merges into) the binding for one
// top-level declaration node.
func (fs *fileScope) bindDeclaration(node *ts.Node, src []byte) *Symbol {
	name, kind, ok := DeclarationName(node, src)
	if !ok {
		return nil
	}
	if existing, found := fs.bindings[name]; found && mergeable(existing, kind) {
		existing.DeclNodes = append(existing.DeclNodes, node)
		return existing
	}
	sym := &Symbol{Name: name, File: fs.sf.Path, Kind: kind, DeclNodes: []*ts.Node{node}}
	fs.bindings[name] = sym
	fs.order = append(fs.order, name)
	return sym
}

// mergeable reports whether a second declaration of the same name may
// merge with the existing symbol (interface re-opening, namespace
// re-opening, or declaration merging between a namespace and a
// class/function/enum of the same name). Value/type namespace collisions
// that are not legitimate merges still merge here for simplicity — the
// collector's admission is what ultimately needs one nameForEmit per
// symbol, and two genuinely distinct symbols sharing a name at module
// scope is not valid TypeScript.
func mergeable(existing *Symbol, kind SymbolKind) bool {
	return existing.Kind == kind || existing.Kind == SymbolKindNamespace || kind == SymbolKindNamespace
}

// bindExportStatement handles `export <decl>`, `export default <expr>`,
// `export { a, b as c }`, and re-export forms `export { a } from './m'` /
// `export * from './m'`.
func (fs *fileScope) bindExportStatement(stmt *ts.Node, src []byte) {
	if decl := stmt.ChildByFieldName("declaration"); decl != nil {
		if decl.GrammarName() == "lexical_declaration" || decl.GrammarName() == "variable_declaration" {
			for i := 0; i < int(decl.NamedChildCount()); i++ {
				fs.bindDeclaration(decl.NamedChild(uint(i)), src)
			}
			return
		}
		fs.bindDeclaration(decl, src)
		return
	}

	// export default <identifier|class|function|expr>
	if value := stmt.ChildByFieldName("value"); value != nil {
		switch value.GrammarName() {
		case "class", "class_declaration", "function_expression", "generator_function", "arrow_function":
			// Anonymous default export: synthesize the binding under the
			// name "default" so DeclarationsOf/admission has a symbol to
			// point at.
			sym := &Symbol{Name: "default", File: fs.sf.Path, Kind: SymbolKindValue, DeclNodes: []*ts.Node{value}}
			fs.bindings["default"] = sym
			fs.order = append(fs.order, "default")
		}
		return
	}

	source := reExportSource(stmt, src)

	// Named export list: `export { a, b as c }` or `export { a } from './m'`.
	if clause := findChildByGrammar(stmt, "export_clause"); clause != nil {
		for i := 0; i < int(clause.NamedChildCount()); i++ {
			spec := clause.NamedChild(uint(i))
			if spec.GrammarName() != "export_specifier" {
				continue
			}
			localNode := spec.ChildByFieldName("name")
			aliasNode := spec.ChildByFieldName("alias")
			local := ""
			if localNode != nil {
				local = string(localNode.Utf8Text(src))
			}
			exported := local
			if aliasNode != nil {
				exported = string(aliasNode.Utf8Text(src))
			}
			if source != "" {
				sym := &Symbol{Name: exported, File: fs.sf.Path, Kind: SymbolKindValue, IsImport: true, ImportFrom: source, ImportedName: local}
				fs.bindings["\x00reexport:"+exported] = sym
			}
			// else: bare `export { a }` re-uses the already-bound local symbol.
		}
	}
}

func reExportSource(stmt *ts.Node, src []byte) string {
	sourceNode := stmt.ChildByFieldName("source")
	if sourceNode == nil {
		return ""
	}
	return trimQuotes(string(sourceNode.Utf8Text(src)))
}

func findChildByGrammar(node *ts.Node, grammar string) *ts.Node {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		c := node.NamedChild(uint(i))
		if c.GrammarName() == grammar {
			return c
		}
	}
	return nil
}

// bindImport parses one `import ...` statement into local bindings.
func (fs *fileScope) bindImport(stmt *ts.Node, src []byte) {
	source := reExportSource(stmt, src)
	if source == "" {
		return
	}
	clause := findChildByGrammar(stmt, "import_clause")
	if clause == nil {
		return // side-effect-only import
	}
	for i := 0; i < int(clause.NamedChildCount()); i++ {
		part := clause.NamedChild(uint(i))
		switch part.GrammarName() {
		case "identifier":
			// default import
			name := string(part.Utf8Text(src))
			fs.bindings[name] = &Symbol{Name: name, File: fs.sf.Path, Kind: SymbolKindValue, IsImport: true, ImportFrom: source, IsDefaultImp: true}
			fs.order = append(fs.order, name)
		case "namespace_import":
			if id := part.NamedChild(0); id != nil {
				name := string(id.Utf8Text(src))
				fs.bindings[name] = &Symbol{Name: name, File: fs.sf.Path, Kind: SymbolKindNamespace, IsImport: true, ImportFrom: source, IsNamespace: true}
				fs.order = append(fs.order, name)
			}
		case "named_imports":
			for j := 0; j < int(part.NamedChildCount()); j++ {
				spec := part.NamedChild(uint(j))
				if spec.GrammarName() != "import_specifier" {
					continue
				}
				nameNode := spec.ChildByFieldName("name")
				aliasNode := spec.ChildByFieldName("alias")
				if nameNode == nil {
					continue
				}
				imported := string(nameNode.Utf8Text(src))
				local := imported
				if aliasNode != nil {
					local = string(aliasNode.Utf8Text(src))
				}
				fs.bindings[local] = &Symbol{Name: local, File: fs.sf.Path, Kind: SymbolKindValue, IsImport: true, ImportFrom: source, ImportedName: imported}
				fs.order = append(fs.order, local)
			}
		}
	}
}

// exports returns this module's export table in declaration order: the
// order named exports/declarations physically appear in source, per §5's
// "entry exports first, in declaration order of the entry module".
func (fs *fileScope) exports(p *Program) []exportEntry {
	fs.exportOnce.Do(func() {
		fs.build()
		root := fs.sf.Root
		src := fs.sf.Text
		count := int(root.NamedChildCount())
		for i := 0; i < count; i++ {
			stmt := root.NamedChild(uint(i))
			if stmt.GrammarName() != "export_statement" {
				continue
			}
			fs.collectExportEntry(stmt, src)
		}
	})
	return fs.exportTable
}

func (fs *fileScope) collectExportEntry(stmt *ts.Node, src []byte) {
	if decl := stmt.ChildByFieldName("declaration"); decl != nil {
		if decl.GrammarName() == "lexical_declaration" || decl.GrammarName() == "variable_declaration" {
			for i := 0; i < int(decl.NamedChildCount()); i++ {
				if name, _, ok := DeclarationName(decl.NamedChild(uint(i)), src); ok {
					if sym, found := fs.bindings[name]; found {
						fs.exportTable = append(fs.exportTable, exportEntry{name: name, symbol: sym})
					}
				}
			}
			return
		}
		if name, _, ok := DeclarationName(decl, src); ok {
			if sym, found := fs.bindings[name]; found {
				fs.exportTable = append(fs.exportTable, exportEntry{name: name, symbol: sym})
			}
		}
		return
	}
	if value := stmt.ChildByFieldName("value"); value != nil {
		if sym, found := fs.bindings["default"]; found {
			fs.exportTable = append(fs.exportTable, exportEntry{name: "default", symbol: sym})
			return
		}
		if value.GrammarName() == "identifier" {
			if sym, found := fs.bindings[string(value.Utf8Text(src))]; found {
				fs.exportTable = append(fs.exportTable, exportEntry{name: "default", symbol: sym})
			}
		}
		return
	}
	source := reExportSource(stmt, src)
	if clause := findChildByGrammar(stmt, "export_clause"); clause != nil {
		for i := 0; i < int(clause.NamedChildCount()); i++ {
			spec := clause.NamedChild(uint(i))
			if spec.GrammarName() != "export_specifier" {
				continue
			}
			localNode := spec.ChildByFieldName("name")
			aliasNode := spec.ChildByFieldName("alias")
			local := ""
			if localNode != nil {
				local = string(localNode.Utf8Text(src))
			}
			exported := local
			if aliasNode != nil {
				exported = string(aliasNode.Utf8Text(src))
			}
			if source != "" {
				if sym, found := fs.bindings["\x00reexport:"+exported]; found {
					fs.exportTable = append(fs.exportTable, exportEntry{name: exported, symbol: sym})
				}
				continue
			}
			if sym, found := fs.bindings[local]; found {
				fs.exportTable = append(fs.exportTable, exportEntry{name: exported, symbol: sym})
			}
		}
		return
	}
	// export * from './m' — star re-export: fall through, resolved lazily
	// by Program.Exports when it cannot find a name any other way.
}

// resolveModulePath resolves a relative import specifier against fromFile
// to a path key in Program.files. Returns "" for bare/package specifiers
// (external modules) or paths outside the loaded file set.
func (p *Program) resolveModulePath(fromFile, spec string) string {
	if !strings.HasPrefix(spec, ".") {
		return "" // external package — ambient
	}
	base := filepath.Dir(fromFile)
	joined := filepath.Join(base, spec)
	candidates := []string{
		joined + ".ts",
		joined + ".tsx",
		joined + ".d.ts",
		joined + ".js",
		joined + ".jsx",
		filepath.Join(joined, "index.ts"),
		filepath.Join(joined, "index.tsx"),
		joined,
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, c := range candidates {
		if _, ok := p.files[normalizePath(c)]; ok {
			return normalizePath(c)
		}
	}
	return ""
}

// Exports enumerates the export table of the module at path, in
// declaration order. Star re-exports (`export * from './m'`) splice in
// the target module's own exports at that point, excluding any name
// already exported directly by this module.
func (p *Program) Exports(path string) []struct {
	Name   string
	Symbol *Symbol
} {
	sf := p.File(path)
	if sf == nil {
		return nil
	}
	fs := sf.ensureScope()
	direct := fs.exports(p)

	seen := make(map[string]bool, len(direct))
	out := make([]struct {
		Name   string
		Symbol *Symbol
	}, 0, len(direct))
	for _, e := range direct {
		if seen[e.name] {
			continue
		}
		seen[e.name] = true
		out = append(out, struct {
			Name   string
			Symbol *Symbol
		}{e.name, e.symbol})
	}

	root := sf.Root
	src := sf.Text
	visitedStar := make(map[string]bool)
	for i := 0; i < int(root.NamedChildCount()); i++ {
		stmt := root.NamedChild(uint(i))
		if stmt.GrammarName() != "export_statement" {
			continue
		}
		if stmt.ChildByFieldName("declaration") != nil || stmt.ChildByFieldName("value") != nil {
			continue
		}
		if findChildByGrammar(stmt, "export_clause") != nil {
			continue
		}
		source := reExportSource(stmt, src)
		if source == "" || visitedStar[source] {
			continue
		}
		visitedStar[source] = true
		target := p.resolveModulePath(path, source)
		if target == "" {
			continue
		}
		for _, sub := range p.Exports(target) {
			if seen[sub.Name] {
				continue
			}
			seen[sub.Name] = true
			out = append(out, sub)
		}
	}
	return out
}
