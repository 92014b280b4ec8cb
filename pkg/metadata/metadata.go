// Package metadata is the Metadata Pass (C5): per-declaration doc-comment
// parsing and per-symbol release-tag resolution, computed lazily on first
// fetch and memoized behind an LRU cache — the same lru.Cache the teacher
// repo uses to bound its symbol index's memory footprint (pkg/indexer),
// rehomed here to bound the metadata cache instead.
package metadata

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/apilens/apilens/pkg/astmodel"
	"github.com/apilens/apilens/pkg/diag"
	"github.com/apilens/apilens/pkg/doccomment"
	"github.com/apilens/apilens/pkg/facade"
)

// ReleaseTag is the effective visibility stage of a symbol.
type ReleaseTag int

const (
	TagNone ReleaseTag = iota
	TagInternal
	TagAlpha
	TagBeta
	TagPublic
)

func (t ReleaseTag) String() string {
	switch t {
	case TagInternal:
		return "@internal"
	case TagAlpha:
		return "@alpha"
	case TagBeta:
		return "@beta"
	case TagPublic:
		return "@public"
	default:
		return ""
	}
}

// rank orders tags for the type-leak check: Public > Beta > Alpha >
// Internal > None.
func (t ReleaseTag) rank() int { return int(t) }

func tagFromModifier(m doccomment.ModifierTag) ReleaseTag {
	switch m {
	case doccomment.TagPublic:
		return TagPublic
	case doccomment.TagBeta:
		return TagBeta
	case doccomment.TagAlpha:
		return TagAlpha
	case doccomment.TagInternal:
		return TagInternal
	default:
		return TagNone
	}
}

// DeclarationMetadata is the per-AstDeclaration record.
type DeclarationMetadata struct {
	Comment            *doccomment.Comment
	IsSealed           bool
	IsVirtual          bool
	IsOverride         bool
	IsEventProperty    bool
	IsPreapproved      bool
	NeedsDocumentation bool
}

// SymbolMetadata is the per-AstSymbol record.
type SymbolMetadata struct {
	ReleaseTag             ReleaseTag
	ReleaseTagSameAsParent bool
}

// undocumentedByPolicy reports whether decl's kind is exempt from needing
// its own documentation regardless of comment presence: constructors and
// enum members. Non-first overload signatures and merged-namespace
// re-declarations are handled by the caller, which knows about sibling
// declarations the kind alone cannot reveal.
func undocumentedByPolicy(kind facade.DeclarationKind) bool {
	switch kind {
	case facade.DeclConstructor, facade.DeclEnumMember:
		return true
	default:
		return false
	}
}

// Pass computes DeclarationMetadata/SymbolMetadata on demand, memoizing
// both behind bounded LRU caches so repeated fetchMetadata calls from the
// collector (§4.4) are O(1) after the first.
type Pass struct {
	declCache *lru.Cache[*astmodel.AstDeclaration, *DeclarationMetadata]
	symCache  *lru.Cache[*astmodel.AstSymbol, *SymbolMetadata]
	diags     *diag.Bag
}

// DefaultCacheSize bounds the metadata caches; a typical package's public
// surface is a few hundred declarations, so this comfortably avoids
// eviction churn while still capping memory for pathological inputs.
const DefaultCacheSize = 4096

// NewPass creates a metadata pass reporting semantic warnings into diags.
func NewPass(diags *diag.Bag) *Pass {
	declCache, err := lru.New[*astmodel.AstDeclaration, *DeclarationMetadata](DefaultCacheSize)
	if err != nil {
		panic(fmt.Sprintf("metadata: failed to create declaration cache: %v", err))
	}
	symCache, err := lru.New[*astmodel.AstSymbol, *SymbolMetadata](DefaultCacheSize)
	if err != nil {
		panic(fmt.Sprintf("metadata: failed to create symbol cache: %v", err))
	}
	return &Pass{declCache: declCache, symCache: symCache, diags: diags}
}

// FetchDeclaration returns decl's metadata, computing and caching it on
// first access.
func (p *Pass) FetchDeclaration(decl *astmodel.AstDeclaration, source []byte) *DeclarationMetadata {
	if m, ok := p.declCache.Get(decl); ok {
		return m
	}
	m := p.computeDeclaration(decl, source)
	p.declCache.Add(decl, m)
	return m
}

func (p *Pass) computeDeclaration(decl *astmodel.AstDeclaration, source []byte) *DeclarationMetadata {
	comment := doccomment.Find(decl.Node, source)
	m := &DeclarationMetadata{
		Comment:         comment,
		IsSealed:        comment.HasModifier(doccomment.TagSealed),
		IsVirtual:       comment.HasModifier(doccomment.TagVirtual),
		IsOverride:      comment.HasModifier(doccomment.TagOverride),
		IsEventProperty: comment.HasModifier(doccomment.TagEventProperty),
		IsPreapproved:   comment.HasModifier(doccomment.TagPreapproved),
	}

	if m.IsOverride || m.IsVirtual {
		if !allowsOverrideOrVirtual(decl.Kind) {
			p.diags.Warnf(diag.CodeInvalidOverride, decl.Symbol.LocalName, decl.File, 0, 0,
				"@override/@virtual is not valid on a %s declaration", decl.Kind)
		}
	}

	m.NeedsDocumentation = !undocumentedByPolicy(decl.Kind) &&
		!isNonFirstOverload(decl) &&
		!isMergedNamespaceRedeclaration(decl) &&
		!comment.HasSummary() &&
		!comment.HasModifier(doccomment.TagInternal)

	return m
}

func allowsOverrideOrVirtual(kind facade.DeclarationKind) bool {
	switch kind {
	case facade.DeclMethod, facade.DeclMethodSignature, facade.DeclProperty, facade.DeclPropertySignature:
		return true
	default:
		return false
	}
}

// isNonFirstOverload reports whether decl is one of several sibling
// declarations of the same symbol and kind at the same nesting depth, and
// is not the first — the "signature of an overloaded function other than
// the first" documentation exemption.
func isNonFirstOverload(decl *astmodel.AstDeclaration) bool {
	for _, d := range decl.Symbol.Declarations() {
		if d == decl {
			return false
		}
		if d.Kind == decl.Kind && d.Parent() == decl.Parent() {
			return true
		}
	}
	return false
}

// isMergedNamespaceRedeclaration reports whether decl is a namespace
// declaration merging into an earlier declaration of the same symbol.
func isMergedNamespaceRedeclaration(decl *astmodel.AstDeclaration) bool {
	if decl.Kind != facade.DeclNamespace {
		return false
	}
	sibs := decl.Symbol.Declarations()
	return len(sibs) > 0 && sibs[0] != decl
}

// FetchSymbol returns sym's metadata, computing and caching it on first
// access. parentTag is the effective release tag of the nearest ancestor
// declaration's symbol, used for inheritance when sym has no tag of its
// own; pass TagNone at the top level.
func (p *Pass) FetchSymbol(sym *astmodel.AstSymbol, source []byte, parentTag ReleaseTag, isTopLevel bool) *SymbolMetadata {
	if m, ok := p.symCache.Get(sym); ok {
		return m
	}
	m := p.computeSymbol(sym, source, parentTag, isTopLevel)
	p.symCache.Add(sym, m)
	return m
}

// computeSymbol implements the resolution rule from §4.5: scan every
// declaration's doc comment for a release tag. Exactly one across all
// declarations wins; more than one distinct tag is an inconsistency
// (effective tag becomes Public, warning emitted); none present inherits
// from the parent, or is None with a missing-tag warning at the top level.
func (p *Pass) computeSymbol(sym *astmodel.AstSymbol, source []byte, parentTag ReleaseTag, isTopLevel bool) *SymbolMetadata {
	found := make(map[ReleaseTag]bool)
	for _, decl := range sym.Declarations() {
		dm := p.FetchDeclaration(decl, source)
		for _, mt := range dm.Comment.ReleaseTags() {
			found[tagFromModifier(mt)] = true
		}
	}

	switch len(found) {
	case 1:
		for t := range found {
			return &SymbolMetadata{ReleaseTag: t, ReleaseTagSameAsParent: !isTopLevel && t == parentTag}
		}
	case 0:
		if !isTopLevel {
			return &SymbolMetadata{ReleaseTag: parentTag, ReleaseTagSameAsParent: true}
		}
		p.diags.Warnf(diag.CodeMissingReleaseTag, sym.LocalName, declFile(sym), 0, 0,
			"%q is exported but has no release tag", sym.LocalName)
		return &SymbolMetadata{ReleaseTag: TagNone}
	default:
		p.diags.Warnf(diag.CodeIncompatibleReleaseTag, sym.LocalName, declFile(sym), 0, 0,
			"%q has inconsistent release tags across its declarations", sym.LocalName)
		return &SymbolMetadata{ReleaseTag: TagPublic}
	}
	return &SymbolMetadata{ReleaseTag: TagNone}
}

func declFile(sym *astmodel.AstSymbol) string {
	if len(sym.Declarations()) == 0 {
		return ""
	}
	return sym.Declarations()[0].File
}

// CheckTypeLeak reports a type-leak diagnostic when decl (with effective
// tag declTag) references a symbol whose effective tag is strictly less
// public. Called by the collector once every symbol's tag has been
// resolved, since the check needs both sides settled.
func (p *Pass) CheckTypeLeak(decl *astmodel.AstDeclaration, declTag ReleaseTag, ref *astmodel.AstSymbol, refTag ReleaseTag) {
	if refTag.rank() < declTag.rank() {
		p.diags.Warnf(diag.CodeTypeLeak, decl.Symbol.LocalName, decl.File, 0, 0,
			"%q is marked %s but references %q which is only %s", decl.Symbol.LocalName, declTag, ref.LocalName, refTag)
	}
}
