package span

import (
	"testing"

	"github.com/stretchr/testify/require"
	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/apilens/apilens/pkg/parser"
	"github.com/apilens/apilens/pkg/util"
)

// findByGrammar returns the first node in node's subtree (node included)
// whose grammar name matches, depth first.
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

// buildRoot parses source as TypeScript and returns the root Span alongside
// a cleanup function that closes the tree and parser manager.
func buildRoot(t *testing.T, source string) (*Span, func()) {
	t.Helper()
	logger := util.NewLogger(util.DefaultLoggerConfig())
	pm := parser.NewParserManager(logger)

	tree, err := pm.Parse([]byte(source), parser.LanguageTypeScript, false)
	require.NoError(t, err)

	root := tree.RootNode()
	sp := Build(root, []byte(source))
	return sp, func() {
		tree.Close()
		pm.Close()
	}
}

func TestBuild_RoundTripsUnmodifiedText(t *testing.T) {
	source := "function add(a: number, b: number): number {\n  return a + b;\n}\n"
	sp, cleanup := buildRoot(t, source)
	defer cleanup()

	require.Equal(t, source, sp.GetText())
}

func TestSkip_OmitsSpanEntirely(t *testing.T) {
	source := "const x = 1;\nconst y = 2;\n"
	sp, cleanup := buildRoot(t, source)
	defer cleanup()

	require.Len(t, sp.Children(), 2)
	first := sp.Children()[0]
	first.Modification.Skip()

	text := sp.GetText()
	require.NotContains(t, text, "const x")
	require.Contains(t, text, "const y")
}

func TestSortChildren_ReordersByKey(t *testing.T) {
	source := "interface Foo {\n  z: string;\n  a: number;\n}\n"
	root, cleanup := buildRoot(t, source)
	defer cleanup()

	body := findByGrammar(root.Node, "interface_body")
	require.NotNil(t, body)
	sp := Build(body, []byte(source))
	require.Len(t, sp.Children(), 2)

	zKey := "z"
	aKey := "a"
	sp.Children()[0].Modification.SortKey = &zKey
	sp.Children()[1].Modification.SortKey = &aKey
	sp.Modification.SortChildren = true

	text := sp.GetText()
	require.True(t, indexOf(text, "a: number") < indexOf(text, "z: string"))
}

func TestPrefixOverride_ReplacesLeadingText(t *testing.T) {
	source := "const x = 1;\n"
	sp, cleanup := buildRoot(t, source)
	defer cleanup()

	decl := sp.Children()[0]
	prefix := "declare const "
	decl.Modification.PrefixOverride = &prefix

	require.Contains(t, sp.GetText(), "declare const ")
}

func TestAreEquivalentApiFileContents(t *testing.T) {
	a := "export declare function foo(): void;\n\nexport declare const bar: number;\n"
	b := "export declare function foo(): void;\r\n\r\nexport declare const   bar: number;\n"
	require.True(t, AreEquivalentApiFileContents(a, b))

	c := "export declare function foo(): string;\n"
	require.False(t, AreEquivalentApiFileContents(a, c))
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
