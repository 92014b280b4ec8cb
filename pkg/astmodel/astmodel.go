// Package astmodel is the Ast Graph (C2): the deduplicated node types the
// analyzer builds one of per logical named entity (AstSymbol) and per
// syntactic declaration site (AstDeclaration), plus the construction-time
// invariants that keep the graph well formed while the analyzer is still
// walking it.
//
// This package owns structure only. It does not decide which symbols get
// visited (that is the analyzer, C3) or what a declaration's documentation
// comment says (that is the metadata pass, C5) — it just refuses to let
// either of those callers build an inconsistent graph.
package astmodel

import (
	"fmt"
	"sort"
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/apilens/apilens/pkg/facade"
)

// AstSymbol is one logical named entity in the analyzed program: a class,
// function, variable, or any other declared name, deduplicated so the same
// underlying compiler symbol always maps to exactly one AstSymbol.
type AstSymbol struct {
	// LocalName is the name as it appears at its defining site, after
	// alias-following.
	LocalName string

	// Nominal is true when this symbol is external or ambient: it must be
	// referenced by name only and never emitted with its own declaration.
	Nominal bool

	// Imported is true when the symbol reached the graph through an
	// import/re-export rather than being declared directly in an analyzed
	// file.
	Imported bool

	compilerSymbol *facade.Symbol
	declarations   []*AstDeclaration
	analyzed       bool
}

// CompilerSymbol returns the façade symbol this AstSymbol was built from.
func (s *AstSymbol) CompilerSymbol() *facade.Symbol { return s.compilerSymbol }

// Declarations returns every declaration site of this symbol, in the order
// they were added (source order across the entry-point traversal).
func (s *AstSymbol) Declarations() []*AstDeclaration {
	return s.declarations
}

// Analyzed reports whether the graph builder has finished visiting this
// symbol's declarations.
func (s *AstSymbol) Analyzed() bool { return s.analyzed }

// AstDeclaration is one syntactic declaration site of an AstSymbol. A
// symbol has more than one when it is an overloaded function, or when
// interfaces/namespaces/classes of the same name merge across statements.
type AstDeclaration struct {
	Symbol *AstSymbol
	Node   *ts.Node
	Kind   facade.DeclarationKind
	File   string

	parent   *AstDeclaration
	children []*AstDeclaration
	refs     []*AstSymbol
	refSet   map[*AstSymbol]bool

	// Metadata is filled in lazily by the metadata pass (C5) on first
	// fetch and memoized there; the graph itself never populates it.
	Metadata any
}

// Parent returns the enclosing AstDeclaration, or nil at the root.
func (d *AstDeclaration) Parent() *AstDeclaration { return d.parent }

// Children returns the nested declarations directly inside d, in source
// order.
func (d *AstDeclaration) Children() []*AstDeclaration { return d.children }

// ReferencedAstSymbols returns every symbol d's syntax subtree refers to,
// excluding itself and its own ancestors (see AttachReference).
func (d *AstDeclaration) ReferencedAstSymbols() []*AstSymbol { return d.refs }

// Graph is the owning arena for a single analysis run: it is the only way
// to mint new AstSymbol/AstDeclaration values, so identity (the "same
// compiler symbol maps to exactly one AstSymbol" invariant) is enforced in
// one place.
type Graph struct {
	bySymbol map[*facade.Symbol]*AstSymbol
	roots    []*AstDeclaration
	order    []*AstSymbol // admission order, for deterministic dumps
}

// NewGraph returns an empty analysis arena.
func NewGraph() *Graph {
	return &Graph{bySymbol: make(map[*facade.Symbol]*AstSymbol)}
}

// EnsureSymbol returns the AstSymbol for cs, creating it if this is the
// first time the graph has seen that compiler symbol. Safe to call
// multiple times for the same cs — the identity invariant depends on it.
func (g *Graph) EnsureSymbol(cs *facade.Symbol) *AstSymbol {
	if cs == nil {
		return nil
	}
	if existing, ok := g.bySymbol[cs]; ok {
		return existing
	}
	sym := &AstSymbol{
		LocalName:      cs.Name,
		Nominal:        cs.Nominal,
		Imported:       cs.IsImport,
		compilerSymbol: cs,
	}
	g.bySymbol[cs] = sym
	g.order = append(g.order, sym)
	return sym
}

// LookupSymbol returns the AstSymbol already minted for cs, or nil.
func (g *Graph) LookupSymbol(cs *facade.Symbol) *AstSymbol {
	return g.bySymbol[cs]
}

// Symbols returns every AstSymbol in admission order.
func (g *Graph) Symbols() []*AstSymbol { return g.order }

// Roots returns every top-level (parentless) AstDeclaration in admission
// order.
func (g *Graph) Roots() []*AstDeclaration { return g.roots }

// AddDeclaration appends a new AstDeclaration for sym at node, attaching it
// under parent (nil for a top-level/root declaration). It refuses
// attachment once sym is analyzed=true, mirroring §4.2's construction-time
// invariant that the graph is frozen after analysis.
func (g *Graph) AddDeclaration(sym *AstSymbol, node *ts.Node, kind facade.DeclarationKind, file string, parent *AstDeclaration) (*AstDeclaration, error) {
	if sym.analyzed {
		return nil, fmt.Errorf("astmodel: cannot add declaration to analyzed symbol %q", sym.LocalName)
	}
	if parent != nil && parent.Symbol != nil && parent.Symbol.analyzed {
		return nil, fmt.Errorf("astmodel: cannot attach child declaration under analyzed parent %q", parent.Symbol.LocalName)
	}
	decl := &AstDeclaration{
		Symbol: sym,
		Node:   node,
		Kind:   kind,
		File:   file,
		parent: parent,
		refSet: make(map[*AstSymbol]bool),
	}
	sym.declarations = append(sym.declarations, decl)
	if parent != nil {
		parent.children = append(parent.children, decl)
	} else {
		g.roots = append(g.roots, decl)
	}
	return decl, nil
}

// AttachReference records that d's syntax subtree refers to target.
// Self-references, references to any ancestor of d, and references an
// ancestor already records are silently rejected — §4.2 requires
// reference edges to be minimal, recorded on the innermost declaration
// whose ancestry does not already record them, since a reference an
// ancestor already carries gives a type-leak check no new information.
// Duplicate targets on d itself are deduped by identity.
func (d *AstDeclaration) AttachReference(target *AstSymbol) {
	if target == nil || target == d.Symbol {
		return
	}
	for p := d.parent; p != nil; p = p.parent {
		if p.Symbol == target || p.refSet[target] {
			return
		}
	}
	if d.refSet[target] {
		return
	}
	d.refSet[target] = true
	d.refs = append(d.refs, target)
}

// MarkAnalyzed freezes every AstSymbol the graph currently holds. Called
// once, after every entry point has been fully traversed (§4.2 step 5).
func (g *Graph) MarkAnalyzed() {
	for _, sym := range g.order {
		sym.analyzed = true
	}
}

// ForEachDeclarationRecursive visits every declaration reachable from root
// (root included) in pre-order, depth first.
func ForEachDeclarationRecursive(root *AstDeclaration, visit func(*AstDeclaration)) {
	if root == nil {
		return
	}
	visit(root)
	for _, c := range root.children {
		ForEachDeclarationRecursive(c, visit)
	}
}

// Dump renders the graph as a deterministic textual form for diagnostics:
// one indented line per declaration, in root/child order, annotated with
// its kind and any referenced symbol names.
func (g *Graph) Dump() string {
	var b strings.Builder
	for _, root := range g.roots {
		dumpDecl(&b, root, 0)
	}
	return b.String()
}

func dumpDecl(b *strings.Builder, d *AstDeclaration, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	fmt.Fprintf(b, "%s %s", d.Kind, d.Symbol.LocalName)
	if len(d.refs) > 0 {
		names := make([]string, len(d.refs))
		for i, r := range d.refs {
			names[i] = r.LocalName
		}
		sort.Strings(names)
		fmt.Fprintf(b, " -> [%s]", strings.Join(names, ", "))
	}
	b.WriteString("\n")
	for _, c := range d.children {
		dumpDecl(b, c, depth+1)
	}
}
