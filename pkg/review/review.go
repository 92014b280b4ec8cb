// Package review is the Review File Generator (C7): it renders the
// collected entities into the normalized, human-reviewable "review file"
// text — one AEDoc synopsis line plus a rewritten declaration span per
// declaration of each exported entity, in admission order. Non-exported
// entities are not rendered.
package review

import (
	"fmt"
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/apilens/apilens/pkg/astmodel"
	"github.com/apilens/apilens/pkg/collector"
	"github.com/apilens/apilens/pkg/facade"
	"github.com/apilens/apilens/pkg/metadata"
	"github.com/apilens/apilens/pkg/span"
)

// Resolver looks up the entity nameForEmit an identifier node resolves
// to, if the collector has admitted one. The review package deliberately
// has no façade dependency of its own — pkg/pipeline supplies this
// closure, since only it has both the façade's symbol table and the
// collector in scope at once.
type Resolver func(node *ts.Node) (nameForEmit string, ok bool)

// Generator renders a review file from a Collector's admitted entities.
type Generator struct {
	col               *collector.Collector
	source            []byte
	hasPackageComment bool
	resolve           Resolver
}

// NewGenerator creates a Generator. hasPackageComment reports whether the
// entry module carries an `@packageDocumentation` comment, used for the
// trailing notice §4.7 calls for when it does not. resolve may be nil, in
// which case identifiers are never rewritten.
func NewGenerator(col *collector.Collector, source []byte, hasPackageComment bool, resolve Resolver) *Generator {
	return &Generator{col: col, source: source, hasPackageComment: hasPackageComment, resolve: resolve}
}

// Generate renders the full review file text.
func (g *Generator) Generate() string {
	var b strings.Builder
	for _, e := range g.col.Entities() {
		if !e.Exported {
			continue
		}
		for i, decl := range e.Symbol.Declarations() {
			// Scenario S2: a symbol merged across several declaration sites
			// (an interface reopened in two statements, an overloaded
			// function) carries one release tag for the whole symbol, so
			// only the first declaration's synopsis shows it.
			g.emitDeclaration(&b, e, decl, metadata.TagNone, true, i == 0)
			b.WriteString("\n\n")
		}
	}
	if !g.hasPackageComment {
		b.WriteString("// (No @packageDocumentation comment for this package)\n")
	}
	return b.String()
}

// emitDeclaration writes one entity's synopsis line followed by its
// rewritten declaration span, per §4.7 steps 1-3. emitTag suppresses the
// release-tag token for every declaration after the first of a merged
// symbol (S2); it never suppresses the declaration-local tokens
// (@sealed/@virtual/@override/@eventproperty/@deprecated/(undocumented)),
// which legitimately vary per declaration site.
func (g *Generator) emitDeclaration(b *strings.Builder, e *collector.Entity, decl *astmodel.AstDeclaration, parentTag metadata.ReleaseTag, topLevel, emitTag bool) *metadata.SymbolMetadata {
	sm := g.col.FetchSymbolMetadata(e.Symbol, parentTag, topLevel)
	dm := g.col.FetchDeclarationMetadata(decl)

	if synopsis := buildSynopsis(sm, dm, emitTag); synopsis != "" {
		b.WriteString("// ")
		b.WriteString(synopsis)
		b.WriteString("\n")
	}

	sp := span.Build(decl.Node, g.source)
	g.applyModifications(sp, decl, e.NameForEmit, sm.ReleaseTag)
	b.WriteString(sp.GetText())
	return sm
}

// buildSynopsis implements step 1's token selection, in order: release
// tag (omitted when releaseTagSameAsParent or when emitTag is false),
// @sealed, @virtual, @override, @eventproperty, @deprecated,
// (undocumented).
func buildSynopsis(sm *metadata.SymbolMetadata, dm *metadata.DeclarationMetadata, emitTag bool) string {
	var tokens []string
	if emitTag && !sm.ReleaseTagSameAsParent {
		if t := sm.ReleaseTag.String(); t != "" {
			tokens = append(tokens, t)
		}
	}
	if dm.IsSealed {
		tokens = append(tokens, "@sealed")
	}
	if dm.IsVirtual {
		tokens = append(tokens, "@virtual")
	}
	if dm.IsOverride {
		tokens = append(tokens, "@override")
	}
	if dm.IsEventProperty {
		tokens = append(tokens, "@eventproperty")
	}
	if dm.Comment != nil {
		for _, blk := range dm.Comment.Blocks {
			if blk.Tag == "@deprecated" {
				tokens = append(tokens, "@deprecated")
				break
			}
		}
	}
	if dm.NeedsDocumentation {
		tokens = append(tokens, "(undocumented)")
	}
	return strings.Join(tokens, " ")
}

// applyModifications walks sp's tree applying the kind-specific
// modification table from §4.7: skip JSDoc comments and export/default
// keywords, sort SyntaxList children of API-declaration nodes, inject a
// `declare <keyword> ` prefix on a top-level VariableDeclaration, rewrite
// identifiers that resolve to a known entity to that entity's
// nameForEmit, and (step 3) inject a re-indented synopsis line ahead of
// every nested API-declaration child. declTag is decl's own resolved
// release tag, threaded down as the inheritance parent for children
// directly nested inside it (§4.5).
func (g *Generator) applyModifications(sp *span.Span, decl *astmodel.AstDeclaration, nameForEmit string, declTag metadata.ReleaseTag) {
	node := sp.Node

	switch node.GrammarName() {
	case "comment":
		sp.Modification.Skip()
		return
	case "export", "default":
		sp.Modification.Skip()
		return
	}

	if node.GrammarName() == "variable_declarator" && decl.Parent() == nil {
		kw := facade.DeclarationListKeyword(node, g.source)
		var prefix string
		if isAlreadyAmbient(node) {
			// Source already reads "declare const x = ..."; only the
			// keyword needs to survive the rewrite, not a second "declare".
			prefix = kw + " "
		} else {
			prefix = fmt.Sprintf("declare %s ", kw)
		}
		suffix := ";"
		sp.Modification.PrefixOverride = &prefix
		sp.Modification.SuffixOverride = &suffix
	}

	if isSyntaxListUnderApiNode(node) {
		sp.Modification.SortChildren = true
	}

	if g.resolve != nil && (node.GrammarName() == "identifier" || node.GrammarName() == "type_identifier") {
		if resolved, ok := g.resolve(node); ok {
			sp.Modification.PrefixOverride = &resolved
		}
	}

	// declChildren is a subsequence of sp.Children(): declaration-eligible
	// nodes only, skipping comments and other structural siblings. Walk
	// both lists together, advancing declIdx only on a match, rather than
	// assuming the two are index-aligned (a leading doc comment on a
	// member shifts sp.Children() without shifting decl.Children()).
	emittedTag := make(map[*astmodel.AstSymbol]bool)
	declChildren := decl.Children()
	declIdx := 0
	for _, child := range sp.Children() {
		childDecl := decl
		isBoundary := declIdx < len(declChildren) && declChildren[declIdx].Node == child.Node
		if isBoundary {
			childDecl = declChildren[declIdx]
			declIdx++
		}

		childTag := declTag
		if isBoundary {
			emitTag := !emittedTag[childDecl.Symbol]
			emittedTag[childDecl.Symbol] = true
			childTag = g.injectNestedSynopsis(child, childDecl, declTag, emitTag)
		}

		g.applyModifications(child, childDecl, nameForEmit, childTag)
		if key := sortKeyFor(child.Node, g.source); key != "" {
			child.Modification.SortKey = &key
		}
	}
}

// injectNestedSynopsis implements §4.7 step 3 / scenario S5: a nested
// API-declaration child (a class/interface member, a namespace export)
// gets its own `// <tokens>` synopsis line, built the same way a
// top-level declaration's is, immediately ahead of its span and
// re-indented to the child's own source column. It fetches childDecl's
// symbol metadata with parentTag as the inheritance ancestor (§4.5) and
// returns the resolved release tag, so grandchildren inherit from the
// nearest enclosing declaration rather than the top-level one.
func (g *Generator) injectNestedSynopsis(child *span.Span, childDecl *astmodel.AstDeclaration, parentTag metadata.ReleaseTag, emitTag bool) metadata.ReleaseTag {
	sm := g.col.FetchSymbolMetadata(childDecl.Symbol, parentTag, false)
	dm := g.col.FetchDeclarationMetadata(childDecl)

	if synopsis := buildSynopsis(sm, dm, emitTag); synopsis != "" {
		indent := indentBefore(g.source, int(child.Node.StartByte()))
		prefix := "// " + synopsis + "\n" + indent + naturalPrefix(child.Node, g.source)
		child.Modification.PrefixOverride = &prefix
	}
	return sm.ReleaseTag
}

// indentBefore returns the whitespace run immediately preceding pos on
// its source line, or "" if anything but whitespace sits between the
// previous newline and pos.
func indentBefore(source []byte, pos int) string {
	start := pos
	for start > 0 && source[start-1] != '\n' {
		start--
	}
	for _, ch := range source[start:pos] {
		if ch != ' ' && ch != '\t' {
			return ""
		}
	}
	return string(source[start:pos])
}

// naturalPrefix reproduces span.Span's unmodified prefix computation for
// node: the text before its first named child, or its full text if it has
// none. Used to preserve that text when overriding a span's prefix to
// inject a synopsis line ahead of it.
func naturalPrefix(node *ts.Node, source []byte) string {
	start := int(node.StartByte())
	if node.NamedChildCount() == 0 {
		return string(source[start:int(node.EndByte())])
	}
	return string(source[start:int(node.NamedChild(0).StartByte())])
}

// isSyntaxListUnderApiNode reports whether node is a body/list wrapper
// whose children are themselves API-declaration-eligible: a class/
// interface/enum body, or a namespace module block.
func isSyntaxListUnderApiNode(node *ts.Node) bool {
	switch node.GrammarName() {
	case "class_body", "interface_body", "enum_body", "statement_block":
		parent := node.Parent()
		return parent != nil && (facade.IsDeclarationNode(parent) || parent.GrammarName() == "internal_module" || parent.GrammarName() == "module_declaration")
	default:
		return false
	}
}

// isAlreadyAmbient reports whether node sits inside a source-level
// `declare ...` block, so the emit-shape rule (§9's declare/keyword design
// note) does not prepend a second "declare".
func isAlreadyAmbient(node *ts.Node) bool {
	for p := node.Parent(); p != nil; p = p.Parent() {
		switch p.GrammarName() {
		case "ambient_declaration":
			return true
		case "export_statement", "lexical_declaration", "variable_declaration":
			continue
		default:
			return false
		}
	}
	return false
}

func sortKeyFor(node *ts.Node, source []byte) string {
	name, _, ok := facade.DeclarationName(node, source)
	if !ok {
		return ""
	}
	return collector.GetSortKeyIgnoringUnderscore(name)
}

