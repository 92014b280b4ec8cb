// Package collector is the Collector (C4): it turns the astmodel.Graph
// into an ordered list of named, emittable entities, resolving the name a
// symbol will actually be printed under (nameForEmit) and giving the
// review generator (C7) and API model builder (C8) a single shared place
// to fetch memoized metadata from.
package collector

import (
	"strconv"
	"strings"

	"github.com/apilens/apilens/pkg/astmodel"
	"github.com/apilens/apilens/pkg/metadata"
)

// Entity is one collected, nameable member of the analyzed package's
// surface: either a genuine entry export, or a symbol reached only via
// reference (a forgotten export, or an ambient/nominal type that still
// needs a name to be printed by).
type Entity struct {
	Symbol      *astmodel.AstSymbol
	Exported    bool
	DesiredName string
	NameForEmit string
}

// Collector owns the ordered entity list and the two lookup maps §4.4
// calls for.
type Collector struct {
	entities  []*Entity
	bySymbol  map[*astmodel.AstSymbol]*Entity
	byName    map[string]*Entity
	metaPass  *metadata.Pass
	source    []byte
}

// New creates an empty Collector. source is the buffer metadata fetches
// need to re-locate doc comments; a Collector is scoped to one file's
// worth of declarations in the simple single-entry-module case, and to the
// façade's combined buffers in the multi-entry case (see pkg/pipeline).
func New(metaPass *metadata.Pass, source []byte) *Collector {
	return &Collector{
		bySymbol: make(map[*astmodel.AstSymbol]*Entity),
		byName:   make(map[string]*Entity),
		metaPass: metaPass,
		source:   source,
	}
}

// AdmitExport admits an entry-export entity: exported=true, desired name
// is the name at the entry point (which may differ from sym.LocalName
// after aliasing/renaming on export).
func (c *Collector) AdmitExport(exportName string, sym *astmodel.AstSymbol) *Entity {
	return c.admit(exportName, sym, true)
}

// AdmitReferenceOnly admits a symbol reached only through a reference edge
// — a forgotten export or a nominal type needing a name — as a
// non-exported entity, per §4.2's forgotten-export handling.
func (c *Collector) AdmitReferenceOnly(sym *astmodel.AstSymbol) *Entity {
	return c.admit(sym.LocalName, sym, false)
}

func (c *Collector) admit(desired string, sym *astmodel.AstSymbol, exported bool) *Entity {
	if existing, ok := c.bySymbol[sym]; ok {
		return existing
	}
	e := &Entity{Symbol: sym, Exported: exported, DesiredName: desired}
	e.NameForEmit = c.resolveName(desired)
	c.entities = append(c.entities, e)
	c.bySymbol[sym] = e
	c.byName[e.NameForEmit] = e
	return e
}

// resolveName implements the collision-resolution rule: the first entity
// with a given desired name keeps it; later ones get "_2", "_3", ... in
// admission order.
func (c *Collector) resolveName(desired string) string {
	if _, taken := c.byName[desired]; !taken {
		return desired
	}
	for n := 2; ; n++ {
		candidate := desired + "_" + strconv.Itoa(n)
		if _, taken := c.byName[candidate]; !taken {
			return candidate
		}
	}
}

// Entities returns every collected entity in admission order.
func (c *Collector) Entities() []*Entity { return c.entities }

// TryGetEntityBySymbol returns the entity for sym, if one has been
// admitted.
func (c *Collector) TryGetEntityBySymbol(sym *astmodel.AstSymbol) (*Entity, bool) {
	e, ok := c.bySymbol[sym]
	return e, ok
}

// FetchDeclarationMetadata is the memoized C5 accessor for a declaration.
func (c *Collector) FetchDeclarationMetadata(decl *astmodel.AstDeclaration) *metadata.DeclarationMetadata {
	return c.metaPass.FetchDeclaration(decl, c.source)
}

// FetchSymbolMetadata is the memoized C5 accessor for a symbol. parentTag
// and isTopLevel thread through the release-tag inheritance rule; callers
// walking the graph top-down pass the parent declaration's resolved tag.
func (c *Collector) FetchSymbolMetadata(sym *astmodel.AstSymbol, parentTag metadata.ReleaseTag, isTopLevel bool) *metadata.SymbolMetadata {
	return c.metaPass.FetchSymbol(sym, c.source, parentTag, isTopLevel)
}

// CheckTypeLeak forwards to the metadata pass's type-leak check, so
// callers that only hold a Collector (not the Pass itself) can still run
// it once every symbol's release tag has been resolved. A declaration
// marked @preapproved is exempted: its author already accepted the wider
// surface, so its forgotten exports stay admitted but silent.
func (c *Collector) CheckTypeLeak(decl *astmodel.AstDeclaration, declTag metadata.ReleaseTag, ref *astmodel.AstSymbol, refTag metadata.ReleaseTag) {
	if c.FetchDeclarationMetadata(decl).IsPreapproved {
		return
	}
	c.metaPass.CheckTypeLeak(decl, declTag, ref, refTag)
}

// GetSortKeyIgnoringUnderscore strips a single leading underscore before
// comparison, so "_foo" sorts adjacent to "foo" rather than before every
// letter, then appends a tie-break marker so "_foo" sorts strictly after
// "foo" regardless of which one appears first in source. Used to
// alphabetize members in the review file.
func GetSortKeyIgnoringUnderscore(name string) string {
	stripped := strings.TrimPrefix(name, "_")
	marker := "0"
	if stripped != name {
		marker = "1"
	}
	return stripped + "\x00" + marker + name
}
