package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/apilens/apilens/pkg/astmodel"
	"github.com/apilens/apilens/pkg/diag"
	"github.com/apilens/apilens/pkg/facade"
	"github.com/apilens/apilens/pkg/parser"
	"github.com/apilens/apilens/pkg/util"
)

// parseDeclaration parses source, locates the first node with the given
// grammar name, and wraps it in a single-declaration AstSymbol/AstDeclaration
// pair so the metadata pass has something realistic to inspect.
func parseDeclaration(t *testing.T, source, grammar string, kind facade.DeclarationKind) (*astmodel.AstDeclaration, []byte, func()) {
	t.Helper()
	logger := util.NewLogger(util.DefaultLoggerConfig())
	pm := parser.NewParserManager(logger)

	tree, err := pm.Parse([]byte(source), parser.LanguageTypeScript, false)
	require.NoError(t, err)

	node := findByGrammar(tree.RootNode(), grammar)
	require.NotNil(t, node, "grammar %q not found", grammar)

	g := astmodel.NewGraph()
	sym := g.EnsureSymbol(&facade.Symbol{Name: "Target"})
	decl, err := g.AddDeclaration(sym, node, kind, "src.ts", nil)
	require.NoError(t, err)

	return decl, []byte(source), func() {
		tree.Close()
		pm.Close()
	}
}

func findByGrammar(node *ts.Node, grammar string) *ts.Node {
	if node == nil {
		return nil
	}
	if node.GrammarName() == grammar {
		return node
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if found := findByGrammar(node.NamedChild(uint(i)), grammar); found != nil {
			return found
		}
	}
	return nil
}

func TestFetchDeclaration_NeedsDocumentationWhenUndocumented(t *testing.T) {
	source := "function add(a: number, b: number): number {\n  return a + b;\n}\n"
	decl, src, cleanup := parseDeclaration(t, source, "function_declaration", facade.DeclFunction)
	defer cleanup()

	p := NewPass(&diag.Bag{})
	dm := p.FetchDeclaration(decl, src)

	assert.True(t, dm.NeedsDocumentation)
	assert.False(t, dm.IsSealed)
}

func TestFetchDeclaration_DocumentedSummarySkipsWarning(t *testing.T) {
	source := "/**\n * Adds two numbers.\n * @public\n */\nfunction add(a: number, b: number): number {\n  return a + b;\n}\n"
	decl, src, cleanup := parseDeclaration(t, source, "function_declaration", facade.DeclFunction)
	defer cleanup()

	p := NewPass(&diag.Bag{})
	dm := p.FetchDeclaration(decl, src)

	assert.False(t, dm.NeedsDocumentation)
	require.NotNil(t, dm.Comment)
	assert.Equal(t, "Adds two numbers.", dm.Comment.Summary)
}

func TestFetchDeclaration_MemoizesAcrossCalls(t *testing.T) {
	source := "function add(a: number, b: number): number {\n  return a + b;\n}\n"
	decl, src, cleanup := parseDeclaration(t, source, "function_declaration", facade.DeclFunction)
	defer cleanup()

	p := NewPass(&diag.Bag{})
	first := p.FetchDeclaration(decl, src)
	second := p.FetchDeclaration(decl, src)

	assert.Same(t, first, second)
}

func TestFetchDeclaration_InvalidOverrideOnFunctionIsWarned(t *testing.T) {
	source := "/**\n * @override\n */\nfunction add(a: number, b: number): number {\n  return a + b;\n}\n"
	decl, src, cleanup := parseDeclaration(t, source, "function_declaration", facade.DeclFunction)
	defer cleanup()

	bag := &diag.Bag{}
	p := NewPass(bag)
	p.FetchDeclaration(decl, src)

	all := bag.All()
	require.Len(t, all, 1)
	assert.Equal(t, diag.CodeInvalidOverride, all[0].Code)
}

func TestFetchSymbol_SingleTagWins(t *testing.T) {
	source := "/**\n * @beta\n */\nfunction add(a: number, b: number): number {\n  return a + b;\n}\n"
	decl, src, cleanup := parseDeclaration(t, source, "function_declaration", facade.DeclFunction)
	defer cleanup()

	p := NewPass(&diag.Bag{})
	sm := p.FetchSymbol(decl.Symbol, src, TagNone, true)

	assert.Equal(t, TagBeta, sm.ReleaseTag)
	assert.False(t, sm.ReleaseTagSameAsParent)
}

func TestFetchSymbol_MissingTopLevelTagWarnsAndDefaultsNone(t *testing.T) {
	source := "function add(a: number, b: number): number {\n  return a + b;\n}\n"
	decl, src, cleanup := parseDeclaration(t, source, "function_declaration", facade.DeclFunction)
	defer cleanup()

	bag := &diag.Bag{}
	p := NewPass(bag)
	sm := p.FetchSymbol(decl.Symbol, src, TagNone, true)

	assert.Equal(t, TagNone, sm.ReleaseTag)
	require.Len(t, bag.All(), 1)
	assert.Equal(t, diag.CodeMissingReleaseTag, bag.All()[0].Code)
}

func TestFetchSymbol_NestedInheritsParentTag(t *testing.T) {
	source := "function add(a: number, b: number): number {\n  return a + b;\n}\n"
	decl, src, cleanup := parseDeclaration(t, source, "function_declaration", facade.DeclFunction)
	defer cleanup()

	p := NewPass(&diag.Bag{})
	sm := p.FetchSymbol(decl.Symbol, src, TagPublic, false)

	assert.Equal(t, TagPublic, sm.ReleaseTag)
	assert.True(t, sm.ReleaseTagSameAsParent)
}

func TestFetchSymbol_SingleTagMatchingParentIsSameAsParent(t *testing.T) {
	source := "/**\n * @public\n */\nfunction add(a: number, b: number): number {\n  return a + b;\n}\n"
	decl, src, cleanup := parseDeclaration(t, source, "function_declaration", facade.DeclFunction)
	defer cleanup()

	p := NewPass(&diag.Bag{})
	sm := p.FetchSymbol(decl.Symbol, src, TagPublic, false)

	assert.Equal(t, TagPublic, sm.ReleaseTag)
	assert.True(t, sm.ReleaseTagSameAsParent, "an explicit tag identical to the parent's must still count as same-as-parent per §3")
}

func TestFetchSymbol_SingleTagDifferingFromParentIsNotSameAsParent(t *testing.T) {
	source := "/**\n * @beta\n */\nfunction add(a: number, b: number): number {\n  return a + b;\n}\n"
	decl, src, cleanup := parseDeclaration(t, source, "function_declaration", facade.DeclFunction)
	defer cleanup()

	p := NewPass(&diag.Bag{})
	sm := p.FetchSymbol(decl.Symbol, src, TagPublic, false)

	assert.Equal(t, TagBeta, sm.ReleaseTag)
	assert.False(t, sm.ReleaseTagSameAsParent)
}

func TestFetchSymbol_InconsistentTagsAcrossDeclarationsWarns(t *testing.T) {
	source := "/**\n * @beta\n */\nfunction add(a: number, b: number): number {\n  return a + b;\n}\n"
	decl, src, cleanup := parseDeclaration(t, source, "function_declaration", facade.DeclFunction)
	defer cleanup()

	// Simulate a second, differently-tagged declaration merged onto the same
	// symbol (e.g. an overload signature with a conflicting tag comment).
	source2 := "/**\n * @internal\n */\nfunction add(a: string): string {\n  return a;\n}\n"
	logger := util.NewLogger(util.DefaultLoggerConfig())
	pm := parser.NewParserManager(logger)
	tree2, err := pm.Parse([]byte(source2), parser.LanguageTypeScript, false)
	require.NoError(t, err)
	defer tree2.Close()
	defer pm.Close()
	node2 := findByGrammar(tree2.RootNode(), "function_declaration")
	require.NotNil(t, node2)

	g := astmodel.NewGraph()
	decl2, err := g.AddDeclaration(decl.Symbol, node2, facade.DeclFunction, "src2.ts", nil)
	require.NoError(t, err)
	_ = decl2

	bag := &diag.Bag{}
	p := NewPass(bag)
	// FetchDeclaration must be able to read decl2's own buffer; use a
	// combined pass that fetches each declaration against its own source.
	p.FetchDeclaration(decl, src)
	p.FetchDeclaration(decl2, []byte(source2))

	sm := p.FetchSymbol(decl.Symbol, src, TagNone, true)
	assert.Equal(t, TagPublic, sm.ReleaseTag)
	require.Len(t, bag.All(), 1)
	assert.Equal(t, diag.CodeIncompatibleReleaseTag, bag.All()[0].Code)
}
