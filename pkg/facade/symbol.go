package facade

import ts "github.com/tree-sitter/go-tree-sitter"

// SymbolKind distinguishes the namespace a Symbol lives in. TypeScript
// allows a value and a type to share one name (e.g. a class); DeclNodes
// on a single Symbol may therefore mix declaration kinds when they are
// legitimately merged (interface + interface, namespace + class, ...).
type SymbolKind int

const (
	SymbolKindValue SymbolKind = iota
	SymbolKindType
	SymbolKindNamespace
)

// Symbol is the façade's compiler-symbol handle — the identity that
// AstSymbol construction in pkg/astmodel keys on. Two references that
// resolve to the same declared entity always yield the same *Symbol
// pointer; this is the "stable identity projection" the design notes in
// §9 of the specification call for.
type Symbol struct {
	Name string // local name at its defining site
	File string // file the symbol is declared or imported into
	Kind SymbolKind

	// DeclNodes are the syntax nodes (identifier/name nodes at each
	// declaration site) for a locally-declared symbol, in source order.
	// Empty for a pure import binding that has not yet been resolved.
	DeclNodes []*ts.Node

	// Import aliasing, when this Symbol is a binding introduced by an
	// import statement rather than a local declaration.
	IsImport     bool
	ImportFrom   string // raw module specifier as written in source
	ImportedName string // name exported by the source module; "" for default/namespace
	IsDefaultImp bool
	IsNamespace  bool

	// Nominal is true once alias-following determines this symbol is
	// external/ambient: declared outside the analyzed file set (a
	// third-party package, an unresolved module, or a name the façade
	// could not bind). Nominal symbols are referenced by name only and
	// never emitted as their own declaration block.
	Nominal bool
}

// DeclarationNode returns the primary (first) declaration site, or nil for
// an unresolved import binding.
func (s *Symbol) DeclarationNode() *ts.Node {
	if len(s.DeclNodes) == 0 {
		return nil
	}
	return s.DeclNodes[0]
}

// SymbolAt resolves the identifier node to the Symbol it references,
// walking up through enclosing scopes. Returns nil if the identifier does
// not name anything the façade can bind (keywords, property-access RHS
// identifiers, literal member names, ...); the caller treats that as an
// unresolvable reference per §4.1's failure mode.
func (sf *SourceFile) SymbolAt(node *ts.Node) *Symbol {
	if node == nil {
		return nil
	}
	name := string(node.Utf8Text(sf.Text))
	if name == "" {
		return nil
	}
	sc := sf.ensureScope()
	if b, ok := sc.lookup(name); ok {
		return b
	}
	return nil
}

// FollowAlias walks import → export chains to the terminal Symbol. A
// Symbol with no import binding is already terminal. Cycles (re-export
// loops) are broken by a visited set and the last symbol seen is returned
// as terminal, marked Nominal so it is not mistaken for a resolved
// declaration.
func (p *Program) FollowAlias(sym *Symbol) *Symbol {
	if sym == nil {
		return nil
	}
	seen := make(map[*Symbol]bool)
	cur := sym
	for cur.IsImport && !seen[cur] {
		seen[cur] = true
		next := p.resolveImport(cur)
		if next == nil {
			cur.Nominal = true
			return cur
		}
		cur = next
	}
	return cur
}

// resolveImport looks up the module cur.ImportFrom refers to (relative to
// cur.File) and returns the Symbol its export table binds ImportedName
// to. Returns nil when the module cannot be resolved within the loaded
// file set (external package, or a local file outside discovery scope) —
// the caller treats the import binding itself as nominal/ambient.
func (p *Program) resolveImport(cur *Symbol) *Symbol {
	target := p.resolveModulePath(cur.File, cur.ImportFrom)
	if target == "" {
		return nil
	}
	tf := p.File(target)
	if tf == nil {
		return nil
	}
	exports := tf.ensureScope().exports(p)
	if cur.IsNamespace {
		// A namespace import binds to the module itself; represent it as
		// a synthetic namespace symbol rather than any one export.
		return tf.ensureScope().namespaceSymbol()
	}
	name := cur.ImportedName
	if cur.IsDefaultImp {
		name = "default"
	}
	for _, e := range exports {
		if e.name == name {
			return e.symbol
		}
	}
	return nil
}

// DeclarationsOf returns every declaration syntax node for sym, in
// source-file + position order (merged interfaces/namespaces/overloads).
func (sym *Symbol) DeclarationsOf() []*ts.Node {
	return sym.DeclNodes
}
