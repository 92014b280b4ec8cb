// Package analyzer is the Symbol Analyzer (C3): it walks the compiler
// façade's symbol graph starting from a package's entry-point exports and
// materializes the astmodel.Graph, following aliases through re-exports and
// recording every declaration's referenced symbols along the way.
package analyzer

import (
	"log/slog"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/apilens/apilens/pkg/astmodel"
	"github.com/apilens/apilens/pkg/diag"
	"github.com/apilens/apilens/pkg/facade"
)

// EntryPoint names one exported symbol at the analysis root: the export
// name at the entry module, which may differ from the symbol's local name
// after alias-following.
type EntryPoint struct {
	ExportName string
	Symbol     *facade.Symbol
}

type nestedKey struct {
	parent *ts.Node
	name   string
}

// Analyzer runs the traversal described in §4.3 over a single façade
// Program, producing an astmodel.Graph.
type Analyzer struct {
	program *facade.Program
	graph   *astmodel.Graph
	diags   *diag.Bag
	logger  *slog.Logger

	visitedDecl map[*ts.Node]bool          // guards against revisiting a subtree already turned into an AstDeclaration
	nested      map[nestedKey]*facade.Symbol // synthetic identity for member declarations, keyed by (enclosing node, name) so overloads/merges under the same parent share one AstSymbol
}

// New creates an Analyzer over program, reporting unresolvable references
// into diags.
func New(program *facade.Program, diags *diag.Bag, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		program:     program,
		graph:       astmodel.NewGraph(),
		diags:       diags,
		logger:      logger,
		visitedDecl: make(map[*ts.Node]bool),
		nested:      make(map[nestedKey]*facade.Symbol),
	}
}

// Analyze runs the full algorithm over entries and returns the resulting
// graph, frozen (every AstSymbol analyzed=true).
func (a *Analyzer) Analyze(entries []EntryPoint) *astmodel.Graph {
	for _, ep := range entries {
		terminal := a.program.FollowAlias(ep.Symbol)
		a.ensureSymbol(terminal)
	}
	a.graph.MarkAnalyzed()
	return a.graph
}

// ensureSymbol implements §4.3 step 1: ensure an AstSymbol for cs exists,
// building all of its top-level declarations the first time it is seen.
// Top-level here means "declaration sites the façade already resolved via
// module scope" — nested member declarations are handled by
// ensureNestedSymbol instead, one declaration node at a time, as they are
// discovered while walking an enclosing declaration's subtree.
func (a *Analyzer) ensureSymbol(cs *facade.Symbol) *astmodel.AstSymbol {
	if cs == nil {
		return nil
	}
	if existing := a.graph.LookupSymbol(cs); existing != nil {
		return existing
	}
	sym := a.graph.EnsureSymbol(cs)
	if cs.Nominal || len(cs.DeclarationsOf()) == 0 {
		return sym
	}

	sf := a.program.File(cs.File)
	if sf == nil {
		sym.Nominal = true
		return sym
	}
	for _, node := range cs.DeclarationsOf() {
		a.buildDeclaration(sym, node, sf, nil)
	}
	return sym
}

// ensureNestedSymbol mints (or reuses) the AstSymbol identity for a member
// declaration inside parentNode's subtree, then builds one AstDeclaration
// for it nested under parentDecl.
func (a *Analyzer) ensureNestedSymbol(parentNode, node *ts.Node, sf *facade.SourceFile, parentDecl *astmodel.AstDeclaration) {
	name, kind, ok := facade.DeclarationName(node, sf.Text)
	if !ok {
		name = "<anonymous>"
	}
	key := nestedKey{parent: parentNode, name: name}
	cs, ok := a.nested[key]
	if !ok {
		cs = &facade.Symbol{Name: name, File: sf.Path, Kind: kind}
		a.nested[key] = cs
	}
	cs.DeclNodes = append(cs.DeclNodes, node)

	sym := a.graph.EnsureSymbol(cs)
	a.buildDeclaration(sym, node, sf, parentDecl)
}

// buildDeclaration implements §4.3 steps 2-4 for one declaration syntax
// node: construct the AstDeclaration, walk its subtree for references, and
// recurse into nested isAstDeclaration-eligible nodes as children.
func (a *Analyzer) buildDeclaration(sym *astmodel.AstSymbol, node *ts.Node, sf *facade.SourceFile, parent *astmodel.AstDeclaration) *astmodel.AstDeclaration {
	if node == nil || a.visitedDecl[node] {
		return nil
	}
	a.visitedDecl[node] = true

	kind := kindFromGrammar(node)
	if node.GrammarName() == "method_definition" && facade.IsConstructor(node, sf.Text) {
		kind = facade.DeclConstructor
	}

	decl, err := a.graph.AddDeclaration(sym, node, kind, sf.Path, parent)
	if err != nil {
		a.diags.Warnf(diag.CodeUnresolvedReference, sym.LocalName, sf.Path, 0, 0, "%s", err.Error())
		return nil
	}

	a.walkSubtree(node, node, sf, decl)
	return decl
}

// walkSubtree implements steps 3-4: visit every identifier in a
// declaration's subtree to record references, and recurse into nested
// declaration-eligible nodes as children — transparently descending
// through non-qualifying container nodes (blocks, lists) in between.
// declNode is the syntax node that owns decl, used as the nesting key for
// member symbol identity.
func (a *Analyzer) walkSubtree(declNode, node *ts.Node, sf *facade.SourceFile, decl *astmodel.AstDeclaration) {
	count := int(node.NamedChildCount())
	for i := 0; i < count; i++ {
		child := node.NamedChild(uint(i))
		if child == nil {
			continue
		}

		if facade.IsDeclarationNode(child) {
			a.ensureNestedSymbol(declNode, child, sf, decl)
			continue
		}

		if isReferenceableIdentifier(child) {
			a.resolveReference(child, sf, decl)
		}

		a.walkSubtree(declNode, child, sf, decl)
	}
}

func isReferenceableIdentifier(node *ts.Node) bool {
	switch node.GrammarName() {
	case "identifier", "type_identifier", "nested_type_identifier", "shorthand_property_identifier":
		return true
	default:
		return false
	}
}

// resolveReference implements §4.3 step 3 for a single identifier node:
// resolve to a symbol, follow aliases, and if the terminal symbol
// represents something referenceable, record the reference. Identifiers
// that never resolve to a module-scope symbol (locals, member names,
// keywords-as-identifiers) are dropped silently per §4.1's failure mode.
func (a *Analyzer) resolveReference(node *ts.Node, sf *facade.SourceFile, decl *astmodel.AstDeclaration) {
	cs := sf.SymbolAt(node)
	if cs == nil {
		return
	}
	terminal := a.program.FollowAlias(cs)
	if terminal == nil {
		return
	}
	sym := a.ensureSymbol(terminal)
	if sym == nil {
		return
	}
	decl.AttachReference(sym)
}

// kindFromGrammar stamps a DeclarationKind on nodes facade.DeclarationName
// cannot name (index/call/construct signatures have no identifier) as well
// as the ones it can, so buildDeclaration never needs the source buffer
// just to classify a node it already knows is declaration-eligible.
func kindFromGrammar(node *ts.Node) facade.DeclarationKind {
	switch node.GrammarName() {
	case "class_declaration", "abstract_class_declaration":
		return facade.DeclClass
	case "interface_declaration":
		return facade.DeclInterface
	case "enum_declaration":
		return facade.DeclEnum
	case "enum_assignment", "property_identifier":
		return facade.DeclEnumMember
	case "internal_module", "module_declaration":
		return facade.DeclNamespace
	case "function_declaration", "generator_function_declaration":
		return facade.DeclFunction
	case "method_definition":
		return facade.DeclMethod
	case "method_signature":
		return facade.DeclMethodSignature
	case "public_field_definition":
		return facade.DeclProperty
	case "property_signature":
		return facade.DeclPropertySignature
	case "variable_declarator":
		return facade.DeclVariable
	case "type_alias_declaration":
		return facade.DeclTypeAlias
	case "index_signature":
		return facade.DeclIndexSignature
	case "call_signature":
		return facade.DeclCallSignature
	case "construct_signature":
		return facade.DeclConstructSignature
	default:
		return facade.DeclProperty
	}
}
