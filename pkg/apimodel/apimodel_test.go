package apimodel

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/apilens/apilens/pkg/astmodel"
	"github.com/apilens/apilens/pkg/collector"
	"github.com/apilens/apilens/pkg/diag"
	"github.com/apilens/apilens/pkg/facade"
	"github.com/apilens/apilens/pkg/metadata"
	"github.com/apilens/apilens/pkg/parser"
	"github.com/apilens/apilens/pkg/parser/queries"
	"github.com/apilens/apilens/pkg/util"
)

func setupBuilder(t *testing.T, source string) (*Builder, *collector.Collector, func()) {
	t.Helper()
	logger := util.NewLogger(util.DefaultLoggerConfig())
	pm := parser.NewParserManager(logger)
	qm := queries.NewQueryManager(pm, logger)
	program := facade.NewProgram(pm, qm, logger)

	_, err := program.AddFile("/pkg/index.ts", []byte(source))
	require.NoError(t, err)
	sf := program.File("/pkg/index.ts")

	g := astmodel.NewGraph()
	for _, e := range program.Exports("/pkg/index.ts") {
		terminal := program.FollowAlias(e.Symbol)
		if terminal == nil || terminal.Nominal {
			continue
		}
		sym := g.EnsureSymbol(terminal)
		for _, node := range terminal.DeclarationsOf() {
			_, _ = g.AddDeclaration(sym, node, facade.DeclFunction, sf.Path, nil)
		}
	}
	g.MarkAnalyzed()

	metaPass := metadata.NewPass(&diag.Bag{})
	col := collector.New(metaPass, sf.Text)
	for _, e := range program.Exports("/pkg/index.ts") {
		terminal := program.FollowAlias(e.Symbol)
		if sym := g.LookupSymbol(terminal); sym != nil {
			col.AdmitExport(e.Name, sym)
		}
	}

	builder := NewBuilder(col, metaPass, sf.Text, nil)
	return builder, col, func() {
		program.Close()
		qm.Close()
		pm.Close()
	}
}

func TestBuildPackage_RootShapeAndEntryPoint(t *testing.T) {
	builder, _, cleanup := setupBuilder(t, "/**\n * @public\n */\nexport function greet(): void {}\n")
	defer cleanup()

	root := builder.BuildPackage("demo", "index.ts")

	require.Equal(t, KindPackage, root.Kind)
	assert.Equal(t, "demo", root.Name)
	assert.Equal(t, "(scope/demo:package)", root.CanonicalReference)
	require.Len(t, root.Members, 1)

	entry := root.Members[0]
	assert.Equal(t, KindEntryPoint, entry.Kind)
	require.Len(t, entry.Members, 1)

	fn := entry.Members[0]
	assert.Equal(t, KindFunction, fn.Kind)
	assert.Equal(t, "greet", fn.Name)
	assert.Equal(t, "@public", fn.ReleaseTag)
}

func TestBuildPackage_SummaryAndDeprecatedPropagate(t *testing.T) {
	source := "/**\n * Greets a user.\n * @public\n * @deprecated use welcome instead\n */\nexport function greet(): void {}\n"
	builder, _, cleanup := setupBuilder(t, source)
	defer cleanup()

	root := builder.BuildPackage("demo", "index.ts")
	fn := root.Members[0].Members[0]

	assert.Equal(t, "Greets a user.", fn.Summary)
	assert.Equal(t, "use welcome instead", fn.Deprecated)
}

func TestToJSON_RoundTripsShape(t *testing.T) {
	builder, _, cleanup := setupBuilder(t, "/**\n * @public\n */\nexport function greet(): void {}\n")
	defer cleanup()

	root := builder.BuildPackage("demo", "index.ts")
	raw, err := ToJSON(root)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "Package", decoded["kind"])
	assert.Equal(t, "demo", decoded["name"])
}

func TestExcerptTokens_NilNodeReturnsNil(t *testing.T) {
	b := &Builder{}
	assert.Nil(t, b.excerptTokens(nil))
}

func TestExcerptTokens_WithoutResolverIsSingleContentToken(t *testing.T) {
	source := "/**\n * @public\n */\nexport function greet(who: string): void {}\n"
	builder, _, cleanup := setupBuilder(t, source)
	defer cleanup()

	root := builder.BuildPackage("demo", "index.ts")
	fn := root.Members[0].Members[0]
	require.Len(t, fn.ExcerptTokens, 1)
	assert.Equal(t, "Content", fn.ExcerptTokens[0].Kind)
}

func TestExcerptTokens_ResolverSplitsOutReferenceToken(t *testing.T) {
	logger := util.NewLogger(util.DefaultLoggerConfig())
	pm := parser.NewParserManager(logger)
	qm := queries.NewQueryManager(pm, logger)
	program := facade.NewProgram(pm, qm, logger)
	defer func() {
		program.Close()
		qm.Close()
		pm.Close()
	}()

	source := "export function greet(who: Person): void {}\n"
	_, err := program.AddFile("/pkg/index.ts", []byte(source))
	require.NoError(t, err)
	sf := program.File("/pkg/index.ts")
	require.True(t, sf.Root.NamedChildCount() > 0)
	fnDecl := sf.Root.NamedChild(0)

	stubEntity := &collector.Entity{Symbol: &astmodel.AstSymbol{LocalName: "Person"}, NameForEmit: "Person"}
	b := &Builder{source: sf.Text, entryRef: "(scope/demo:package).(index.ts:entrypoint)", refBySymbol: map[*astmodel.AstSymbol]string{}}
	b.resolve = func(node *ts.Node) (*collector.Entity, bool) {
		if node.GrammarName() == "type_identifier" && string(node.Utf8Text(sf.Text)) == "Person" {
			return stubEntity, true
		}
		return nil, false
	}

	tokens := b.excerptTokens(fnDecl)
	var refs []Token
	for _, tok := range tokens {
		if tok.Kind == "Reference" {
			refs = append(refs, tok)
		}
	}
	require.Len(t, refs, 1)
	assert.Equal(t, "Person", refs[0].Text)
	assert.Contains(t, refs[0].CanonicalReference, "Person")
}
