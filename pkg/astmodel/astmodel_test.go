package astmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apilens/apilens/pkg/facade"
)

func TestGraph_EnsureSymbol_DedupesByCompilerSymbol(t *testing.T) {
	g := NewGraph()
	cs := &facade.Symbol{Name: "Widget"}

	s1 := g.EnsureSymbol(cs)
	s2 := g.EnsureSymbol(cs)

	assert.Same(t, s1, s2)
	assert.Equal(t, "Widget", s1.LocalName)
	assert.Same(t, cs, s1.CompilerSymbol())
}

func TestGraph_EnsureSymbol_NilIsNil(t *testing.T) {
	g := NewGraph()
	assert.Nil(t, g.EnsureSymbol(nil))
}

func TestGraph_AddDeclaration_TracksRootsAndChildren(t *testing.T) {
	g := NewGraph()
	sym := g.EnsureSymbol(&facade.Symbol{Name: "Foo"})

	root, err := g.AddDeclaration(sym, nil, facade.DeclClass, "foo.ts", nil)
	require.NoError(t, err)
	require.Len(t, g.Roots(), 1)
	assert.Same(t, root, g.Roots()[0])

	childSym := g.EnsureSymbol(&facade.Symbol{Name: "method"})
	child, err := g.AddDeclaration(childSym, nil, facade.DeclMethod, "foo.ts", root)
	require.NoError(t, err)

	assert.Same(t, root, child.Parent())
	require.Len(t, root.Children(), 1)
	assert.Same(t, child, root.Children()[0])
}

func TestGraph_AddDeclaration_RefusesAfterAnalyzed(t *testing.T) {
	g := NewGraph()
	sym := g.EnsureSymbol(&facade.Symbol{Name: "Foo"})
	_, err := g.AddDeclaration(sym, nil, facade.DeclClass, "foo.ts", nil)
	require.NoError(t, err)

	g.MarkAnalyzed()

	_, err = g.AddDeclaration(sym, nil, facade.DeclClass, "foo.ts", nil)
	assert.Error(t, err)
}

func TestAstDeclaration_AttachReference_DedupesAndRejectsSelfAndAncestors(t *testing.T) {
	g := NewGraph()
	parentSym := g.EnsureSymbol(&facade.Symbol{Name: "Outer"})
	parent, err := g.AddDeclaration(parentSym, nil, facade.DeclNamespace, "f.ts", nil)
	require.NoError(t, err)

	childSym := g.EnsureSymbol(&facade.Symbol{Name: "Inner"})
	child, err := g.AddDeclaration(childSym, nil, facade.DeclClass, "f.ts", parent)
	require.NoError(t, err)

	otherSym := g.EnsureSymbol(&facade.Symbol{Name: "Other"})

	child.AttachReference(childSym) // self: rejected
	child.AttachReference(parentSym) // ancestor: rejected
	child.AttachReference(otherSym)
	child.AttachReference(otherSym) // duplicate: deduped

	refs := child.ReferencedAstSymbols()
	require.Len(t, refs, 1)
	assert.Same(t, otherSym, refs[0])
}

func TestAstDeclaration_AttachReference_RejectsTargetAlreadyOnAncestor(t *testing.T) {
	g := NewGraph()
	parentSym := g.EnsureSymbol(&facade.Symbol{Name: "C"})
	parent, err := g.AddDeclaration(parentSym, nil, facade.DeclClass, "f.ts", nil)
	require.NoError(t, err)

	childSym := g.EnsureSymbol(&facade.Symbol{Name: "foo"})
	child, err := g.AddDeclaration(childSym, nil, facade.DeclMethod, "f.ts", parent)
	require.NoError(t, err)

	hiddenSym := g.EnsureSymbol(&facade.Symbol{Name: "IHidden"})

	// class C extends IHidden { foo(): IHidden } — IHidden is attached to
	// the ancestor (heritage clause) before the method body is walked, so
	// the method's own reference to it is redundant and must be rejected.
	parent.AttachReference(hiddenSym)
	child.AttachReference(hiddenSym)

	assert.Empty(t, child.ReferencedAstSymbols())
	require.Len(t, parent.ReferencedAstSymbols(), 1)
	assert.Same(t, hiddenSym, parent.ReferencedAstSymbols()[0])
}

func TestForEachDeclarationRecursive_VisitsPreOrder(t *testing.T) {
	g := NewGraph()
	rootSym := g.EnsureSymbol(&facade.Symbol{Name: "A"})
	root, _ := g.AddDeclaration(rootSym, nil, facade.DeclClass, "f.ts", nil)
	childSym := g.EnsureSymbol(&facade.Symbol{Name: "B"})
	_, _ = g.AddDeclaration(childSym, nil, facade.DeclMethod, "f.ts", root)

	var visited []string
	ForEachDeclarationRecursive(root, func(d *AstDeclaration) {
		visited = append(visited, d.Symbol.LocalName)
	})

	assert.Equal(t, []string{"A", "B"}, visited)
}

func TestGraph_Dump_IncludesReferences(t *testing.T) {
	g := NewGraph()
	sym := g.EnsureSymbol(&facade.Symbol{Name: "Foo"})
	decl, _ := g.AddDeclaration(sym, nil, facade.DeclClass, "f.ts", nil)
	ref := g.EnsureSymbol(&facade.Symbol{Name: "Bar"})
	decl.AttachReference(ref)

	dump := g.Dump()
	assert.Contains(t, dump, "class Foo")
	assert.Contains(t, dump, "[Bar]")
}
