// Package apimodel is the Api Model Builder (C8): it walks the collected
// entities and produces the machine-readable documented-item tree that
// documentation generators consume, serialized as JSON.
package apimodel

import (
	"encoding/json"
	"fmt"
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/apilens/apilens/pkg/astmodel"
	"github.com/apilens/apilens/pkg/collector"
	"github.com/apilens/apilens/pkg/facade"
	"github.com/apilens/apilens/pkg/metadata"
)

// Resolver looks up the collected entity an identifier node resolves to,
// if the façade can trace it to one the collector has admitted. Mirrors
// review.Resolver's role; the model builder additionally needs the
// resolved entity's own kind, so it returns the entity rather than just
// a rendered name.
type Resolver func(node *ts.Node) (*collector.Entity, bool)

// Kind is the item variant, mirroring §4.8's polymorphic capability set.
type Kind string

const (
	KindPackage               Kind = "Package"
	KindEntryPoint            Kind = "EntryPoint"
	KindClass                 Kind = "Class"
	KindInterface             Kind = "Interface"
	KindNamespace             Kind = "Namespace"
	KindMethod                Kind = "Method"
	KindMethodSignature       Kind = "MethodSignature"
	KindProperty              Kind = "Property"
	KindPropertySignature     Kind = "PropertySignature"
	KindFunction              Kind = "Function"
	KindEnum                  Kind = "Enum"
	KindEnumMember            Kind = "EnumMember"
	KindConstructor           Kind = "Constructor"
	KindConstructorSignature  Kind = "ConstructorSignature"
	KindIndexSignature        Kind = "IndexSignature"
	KindCallSignature         Kind = "CallSignature"
	KindTypeAlias             Kind = "TypeAlias"
)

var kindByDeclKind = map[facade.DeclarationKind]Kind{
	facade.DeclClass:              KindClass,
	facade.DeclInterface:          KindInterface,
	facade.DeclNamespace:          KindNamespace,
	facade.DeclMethod:             KindMethod,
	facade.DeclMethodSignature:    KindMethodSignature,
	facade.DeclProperty:           KindProperty,
	facade.DeclPropertySignature:  KindPropertySignature,
	facade.DeclFunction:           KindFunction,
	facade.DeclEnum:               KindEnum,
	facade.DeclEnumMember:         KindEnumMember,
	facade.DeclConstructor:        KindConstructor,
	facade.DeclConstructSignature: KindConstructorSignature,
	facade.DeclIndexSignature:     KindIndexSignature,
	facade.DeclCallSignature:      KindCallSignature,
	facade.DeclTypeAlias:          KindTypeAlias,
	facade.DeclVariable:           KindProperty,
}

// Item is one node of the documented-item tree. Fields are populated
// according to which of §4.8's capabilities the item's Kind has; a leaf
// item (e.g. a Property) simply leaves Members nil.
type Item struct {
	Kind               Kind    `json:"kind"`
	Name               string  `json:"name"`
	CanonicalReference string  `json:"canonicalReference"`
	ReleaseTag         string  `json:"releaseTag,omitempty"`
	Summary            string  `json:"summary,omitempty"`
	Deprecated         string  `json:"deprecated,omitempty"`
	ExcerptTokens      []Token `json:"excerptTokens,omitempty"`
	Members            []*Item `json:"members,omitempty"`
}

// Token is one piece of an item's rendered type signature — plain source
// text, or a reference to another canonical reference the documentation
// generator can hyperlink.
type Token struct {
	Kind               string `json:"kind"` // "Content" | "Reference"
	Text               string `json:"text"`
	CanonicalReference string `json:"canonicalReference,omitempty"`
}

// Builder assembles the tree for one package.
type Builder struct {
	col      *collector.Collector
	metaPass *metadata.Pass
	source   []byte
	resolve  Resolver

	entryRef    string
	refBySymbol map[*astmodel.AstSymbol]string
}

// NewBuilder creates a Builder sharing the collector's memoized metadata.
// resolve may be nil, in which case excerpts are emitted as a single
// Content token with no cross-linking.
func NewBuilder(col *collector.Collector, metaPass *metadata.Pass, source []byte, resolve Resolver) *Builder {
	return &Builder{col: col, metaPass: metaPass, source: source, resolve: resolve, refBySymbol: make(map[*astmodel.AstSymbol]string)}
}

// BuildPackage walks every admitted, exported entity and produces the root
// Package item with one EntryPoint child.
func (b *Builder) BuildPackage(packageName, entryPointName string) *Item {
	pkgRef := fmt.Sprintf("(scope/%s:package)", packageName)
	entry := &Item{
		Kind:               KindEntryPoint,
		Name:               entryPointName,
		CanonicalReference: pkgRef + fmt.Sprintf(".(%s:entrypoint)", entryPointName),
	}
	b.entryRef = entry.CanonicalReference

	for _, e := range b.col.Entities() {
		if !e.Exported {
			continue
		}
		if item := b.buildEntity(e, entry.CanonicalReference, metadata.TagNone, true); item != nil {
			entry.Members = append(entry.Members, item)
		}
	}

	return &Item{
		Kind:               KindPackage,
		Name:               packageName,
		CanonicalReference: pkgRef,
		Members:            []*Item{entry},
	}
}

func (b *Builder) buildEntity(e *collector.Entity, parentRef string, parentTag metadata.ReleaseTag, topLevel bool) *Item {
	if len(e.Symbol.Declarations()) == 0 {
		return nil
	}
	decl := e.Symbol.Declarations()[0]
	sm := b.col.FetchSymbolMetadata(e.Symbol, parentTag, topLevel)
	dm := b.col.FetchDeclarationMetadata(decl)

	kind, ok := kindByDeclKind[decl.Kind]
	if !ok {
		kind = KindProperty
	}

	ref := fmt.Sprintf("%s.(%s:%s)", parentRef, e.NameForEmit, strings.ToLower(string(kind)))
	b.refBySymbol[e.Symbol] = ref
	item := &Item{
		Kind:               kind,
		Name:               e.NameForEmit,
		CanonicalReference: ref,
		ReleaseTag:         sm.ReleaseTag.String(),
	}
	if dm.Comment != nil {
		item.Summary = dm.Comment.Summary
		for _, blk := range dm.Comment.Blocks {
			if blk.Tag == "@deprecated" {
				item.Deprecated = blk.Text
			}
		}
	}
	item.ExcerptTokens = b.excerptTokens(decl.Node)

	for _, child := range decl.Children() {
		childSym := child.Symbol
		childEntity, found := b.col.TryGetEntityBySymbol(childSym)
		if !found {
			childEntity = b.col.AdmitReferenceOnly(childSym)
		}
		if ci := b.buildEntity(childEntity, ref, sm.ReleaseTag, false); ci != nil {
			item.Members = append(item.Members, ci)
		}
	}

	return item
}

// excerptTokens renders node's source text as fragments alternating
// literal Content and Reference tokens, per §4.8: every identifier or
// type identifier the resolver can trace to an admitted entity becomes a
// Reference token carrying that entity's canonical reference, so a
// documentation generator can hyperlink it, with the untouched source
// text either side kept as Content.
func (b *Builder) excerptTokens(node *ts.Node) []Token {
	if node == nil {
		return nil
	}
	if b.resolve == nil {
		return []Token{{Kind: "Content", Text: string(node.Utf8Text(b.source))}}
	}

	idents := collectIdentifierNodes(node, nil)
	if len(idents) == 0 {
		return []Token{{Kind: "Content", Text: string(node.Utf8Text(b.source))}}
	}

	var tokens []Token
	cursor := node.StartByte()
	flush := func(end uint) {
		if end > cursor {
			tokens = append(tokens, Token{Kind: "Content", Text: string(b.source[cursor:end])})
		}
	}
	for _, id := range idents {
		entity, ok := b.resolve(id)
		if !ok {
			continue
		}
		flush(id.StartByte())
		tokens = append(tokens, Token{
			Kind:               "Reference",
			Text:               entity.NameForEmit,
			CanonicalReference: b.referenceFor(entity),
		})
		cursor = id.EndByte()
	}
	flush(node.EndByte())
	return tokens
}

// referenceFor returns entity's canonical reference: the one recorded
// when its own Item was built, if any, or a best-effort reference rooted
// at the entry point for an entity (typically a forgotten export) that
// never became an Item of its own.
func (b *Builder) referenceFor(entity *collector.Entity) string {
	if ref, ok := b.refBySymbol[entity.Symbol]; ok {
		return ref
	}
	kind := KindProperty
	if len(entity.Symbol.Declarations()) > 0 {
		if k, ok := kindByDeclKind[entity.Symbol.Declarations()[0].Kind]; ok {
			kind = k
		}
	}
	return fmt.Sprintf("%s.(%s:%s)", b.entryRef, entity.NameForEmit, strings.ToLower(string(kind)))
}

// collectIdentifierNodes appends every identifier/type_identifier leaf in
// node's subtree, in source order, to out.
func collectIdentifierNodes(node *ts.Node, out []*ts.Node) []*ts.Node {
	if node == nil {
		return out
	}
	switch node.GrammarName() {
	case "identifier", "type_identifier":
		return append(out, node)
	}
	count := int(node.ChildCount())
	for i := 0; i < count; i++ {
		out = collectIdentifierNodes(node.Child(uint(i)), out)
	}
	return out
}

// ToJSON serializes root with stable field order and two-space indent.
func ToJSON(root *Item) ([]byte, error) {
	return json.MarshalIndent(root, "", "  ")
}
