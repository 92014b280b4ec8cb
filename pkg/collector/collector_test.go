package collector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/apilens/apilens/pkg/astmodel"
	"github.com/apilens/apilens/pkg/diag"
	"github.com/apilens/apilens/pkg/facade"
	"github.com/apilens/apilens/pkg/metadata"
	"github.com/apilens/apilens/pkg/parser"
	"github.com/apilens/apilens/pkg/util"
)

func TestCollector_AdmitExport_ResolvesCollisions(t *testing.T) {
	metaPass := metadata.NewPass(&diag.Bag{})
	col := New(metaPass, nil)
	g := astmodel.NewGraph()

	a := g.EnsureSymbol(&facade.Symbol{Name: "Widget"})
	b := g.EnsureSymbol(&facade.Symbol{Name: "Widget"})

	ea := col.AdmitExport("Widget", a)
	eb := col.AdmitExport("Widget", b)

	assert.Equal(t, "Widget", ea.NameForEmit)
	assert.Equal(t, "Widget_2", eb.NameForEmit)
	require.Len(t, col.Entities(), 2)
}

func TestCollector_AdmitExport_IsIdempotentPerSymbol(t *testing.T) {
	metaPass := metadata.NewPass(&diag.Bag{})
	col := New(metaPass, nil)
	g := astmodel.NewGraph()
	sym := g.EnsureSymbol(&facade.Symbol{Name: "Widget"})

	e1 := col.AdmitExport("Widget", sym)
	e2 := col.AdmitExport("Widget", sym)

	assert.Same(t, e1, e2)
	require.Len(t, col.Entities(), 1)
}

func TestCollector_AdmitReferenceOnly_NotExported(t *testing.T) {
	metaPass := metadata.NewPass(&diag.Bag{})
	col := New(metaPass, nil)
	g := astmodel.NewGraph()
	sym := g.EnsureSymbol(&facade.Symbol{Name: "Helper"})

	e := col.AdmitReferenceOnly(sym)
	assert.False(t, e.Exported)
	assert.Equal(t, "Helper", e.NameForEmit)

	found, ok := col.TryGetEntityBySymbol(sym)
	require.True(t, ok)
	assert.Same(t, e, found)
}

func TestGetSortKeyIgnoringUnderscore(t *testing.T) {
	assert.Equal(t, "foo\x001_foo", GetSortKeyIgnoringUnderscore("_foo"))
	assert.Equal(t, "foo\x000foo", GetSortKeyIgnoringUnderscore("foo"))
}

func parseFunctionDecl(t *testing.T, source string) (*astmodel.AstDeclaration, []byte, func()) {
	t.Helper()
	logger := util.NewLogger(util.DefaultLoggerConfig())
	pm := parser.NewParserManager(logger)
	tree, err := pm.Parse([]byte(source), parser.LanguageTypeScript, false)
	require.NoError(t, err)

	node := findFunctionDecl(tree.RootNode())
	require.NotNil(t, node)

	g := astmodel.NewGraph()
	sym := g.EnsureSymbol(&facade.Symbol{Name: "target"})
	decl, err := g.AddDeclaration(sym, node, facade.DeclFunction, "src.ts", nil)
	require.NoError(t, err)

	return decl, []byte(source), func() {
		tree.Close()
		pm.Close()
	}
}

func findFunctionDecl(node *ts.Node) *ts.Node {
	if node == nil {
		return nil
	}
	if node.GrammarName() == "function_declaration" {
		return node
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if found := findFunctionDecl(node.NamedChild(uint(i))); found != nil {
			return found
		}
	}
	return nil
}

func TestCollector_CheckTypeLeak_SkipsPreapprovedDeclaration(t *testing.T) {
	source := "/**\n * @preapproved\n */\nfunction target(): void {}\n"
	decl, src, cleanup := parseFunctionDecl(t, source)
	defer cleanup()

	bag := &diag.Bag{}
	metaPass := metadata.NewPass(bag)
	col := New(metaPass, src)

	ref := &astmodel.AstSymbol{LocalName: "Internal"}
	col.CheckTypeLeak(decl, metadata.TagPublic, ref, metadata.TagInternal)

	assert.Empty(t, bag.All())
}

func TestCollector_CheckTypeLeak_ReportsWhenNotPreapproved(t *testing.T) {
	source := "function target(): void {}\n"
	decl, src, cleanup := parseFunctionDecl(t, source)
	defer cleanup()

	bag := &diag.Bag{}
	metaPass := metadata.NewPass(bag)
	col := New(metaPass, src)

	ref := &astmodel.AstSymbol{LocalName: "Internal"}
	col.CheckTypeLeak(decl, metadata.TagPublic, ref, metadata.TagInternal)

	require.Len(t, bag.All(), 1)
	assert.Equal(t, diag.CodeTypeLeak, bag.All()[0].Code)
}
