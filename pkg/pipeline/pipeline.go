// Package pipeline wires the eight extraction components together: it is
// the only package that imports all of C1 through C8, and the only place
// their data-flow order (§3: C1 → C3 → C2 → C4 → C5 → (C6 ⇒ C7), (C2+C5 ⇒
// C8)) is expressed as code rather than as a diagram.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/apilens/apilens/pkg/analyzer"
	"github.com/apilens/apilens/pkg/apimodel"
	"github.com/apilens/apilens/pkg/astmodel"
	"github.com/apilens/apilens/pkg/collector"
	"github.com/apilens/apilens/pkg/diag"
	"github.com/apilens/apilens/pkg/doccomment"
	"github.com/apilens/apilens/pkg/facade"
	"github.com/apilens/apilens/pkg/metadata"
	"github.com/apilens/apilens/pkg/parser"
	"github.com/apilens/apilens/pkg/parser/queries"
	"github.com/apilens/apilens/pkg/review"
)

// ErrEntryPointNotFound is returned when Config.EntryModules names a file
// AddFile was never called with.
var ErrEntryPointNotFound = errors.New("pipeline: entry point module not loaded")

// ErrAnalyzed is returned by Run when called more than once on the same
// Pipeline.
var ErrAnalyzed = errors.New("pipeline: pipeline has already run")

// Config configures one extraction run. A run covers exactly one package:
// possibly several entry modules (a package may re-export its surface
// through more than one root file), all analyzed against the same façade
// Program.
type Config struct {
	PackageName string
	// EntryModules are the normalized paths of the package's root
	// modules, in the order their exports should be admitted.
	EntryModules []string
	// LocalBuild disables error-escalation of missing and incompatible
	// release-tag warnings, mirroring the CLI's `--local` flag. Type-leak
	// warnings are never escalated.
	LocalBuild bool
	Logger     *slog.Logger
}

// Validate reports every configuration error found, rather than failing
// on the first, so a caller can surface them all at once.
func (c *Config) Validate() []error {
	var errs []error
	if c.PackageName == "" {
		errs = append(errs, fmt.Errorf("pipeline: PackageName is required"))
	}
	if len(c.EntryModules) == 0 {
		errs = append(errs, fmt.Errorf("pipeline: at least one entry module is required"))
	}
	return errs
}

// Result is everything a Run produces.
type Result struct {
	ReviewFile  string
	ApiModel    *apimodel.Item
	Diagnostics []diag.Diagnostic
}

// Pipeline owns the façade Program its Config's entry modules were loaded
// into, plus the components built up across a Run.
type Pipeline struct {
	cfg     Config
	program *facade.Program
	diags   *diag.Bag
	ran     bool
}

// New creates a Pipeline over an already-populated façade Program: the
// caller is responsible for discovering source files and calling
// program.AddFile for every one of them (including Config.EntryModules)
// before calling Run.
func New(cfg Config, program *facade.Program) (*Pipeline, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("pipeline: invalid config: %w", errors.Join(errs...))
	}
	return &Pipeline{cfg: cfg, program: program, diags: &diag.Bag{}}, nil
}

// NewProgram is a convenience constructor bundling the parser/query
// managers a façade needs, for callers (cmd/apilens) that do not already
// have one.
func NewProgram(logger *slog.Logger) *facade.Program {
	pm := parser.NewParserManager(logger)
	qm := queries.NewQueryManager(pm, logger)
	return facade.NewProgram(pm, qm, logger)
}

// Run executes the full pipeline and returns its Result. It may be called
// only once per Pipeline.
func (p *Pipeline) Run() (*Result, error) {
	if p.ran {
		return nil, ErrAnalyzed
	}
	p.ran = true

	entries, entrySF, err := p.collectEntryPoints()
	if err != nil {
		return nil, err
	}

	az := analyzer.New(p.program, p.diags, p.cfg.Logger)
	graph := az.Analyze(entries)

	metaPass := metadata.NewPass(p.diags)
	col := collector.New(metaPass, entrySF.Text)

	for _, ep := range entries {
		terminal := p.program.FollowAlias(ep.Symbol)
		if sym := graph.LookupSymbol(terminal); sym != nil {
			col.AdmitExport(ep.ExportName, sym)
		}
	}
	admitForgottenExports(graph, col)

	resolveReleaseTags(col)
	p.checkTypeLeaks(col)

	if !p.cfg.LocalBuild {
		p.diags.Escalate(diag.CodeMissingReleaseTag, diag.CodeIncompatibleReleaseTag)
	}

	resolve := func(node *ts.Node) (string, bool) {
		cs := entrySF.SymbolAt(node)
		if cs == nil {
			return "", false
		}
		terminal := p.program.FollowAlias(cs)
		sym := graph.LookupSymbol(terminal)
		if sym == nil {
			return "", false
		}
		e, ok := col.TryGetEntityBySymbol(sym)
		if !ok || e.NameForEmit == e.Symbol.LocalName {
			return "", false
		}
		return e.NameForEmit, true
	}

	hasPkgDoc := p.hasPackageDocumentation(entrySF)
	gen := review.NewGenerator(col, entrySF.Text, hasPkgDoc, resolve)
	reviewText := gen.Generate()

	modelResolve := func(node *ts.Node) (*collector.Entity, bool) {
		cs := entrySF.SymbolAt(node)
		if cs == nil {
			return nil, false
		}
		terminal := p.program.FollowAlias(cs)
		sym := graph.LookupSymbol(terminal)
		if sym == nil {
			return nil, false
		}
		return col.TryGetEntityBySymbol(sym)
	}
	builder := apimodel.NewBuilder(col, metaPass, entrySF.Text, modelResolve)
	model := builder.BuildPackage(p.cfg.PackageName, entryModuleName(p.cfg.EntryModules[0]))

	return &Result{
		ReviewFile:  reviewText,
		ApiModel:    model,
		Diagnostics: p.diags.All(),
	}, nil
}

func (p *Pipeline) collectEntryPoints() ([]analyzer.EntryPoint, *facade.SourceFile, error) {
	var entries []analyzer.EntryPoint
	var first *facade.SourceFile
	for _, path := range p.cfg.EntryModules {
		sf := p.program.File(path)
		if sf == nil {
			return nil, nil, fmt.Errorf("%w: %s", ErrEntryPointNotFound, path)
		}
		if first == nil {
			first = sf
		}
		for _, e := range p.program.Exports(path) {
			entries = append(entries, analyzer.EntryPoint{ExportName: e.Name, Symbol: e.Symbol})
		}
	}
	return entries, first, nil
}

// admitForgottenExports implements the Collector's second admission rule
// from §4.4: every AstSymbol the analyzer reached but that no entry
// export ever claimed becomes a non-exported entity.
func admitForgottenExports(graph *astmodel.Graph, col *collector.Collector) {
	for _, sym := range graph.Symbols() {
		if _, ok := col.TryGetEntityBySymbol(sym); ok {
			continue
		}
		col.AdmitReferenceOnly(sym)
	}
}

// resolveReleaseTags implements §4.5's inheritance rule top-down, parent
// declarations before children, so every symbol's SymbolMetadata is
// memoized against its real parent tag. FetchSymbolMetadata computes and
// caches on first call only; without this pass, checkTypeLeaks' flat scan
// over every admitted entity (including nested members admitted by
// admitForgottenExports) would be the first caller for most of them,
// resolving each with parentTag=TagNone regardless of its true ancestor —
// poisoning the cache before review/apimodel's own top-down passes ever
// get a chance to supply the real parent tag.
func resolveReleaseTags(col *collector.Collector) {
	for _, e := range col.Entities() {
		for _, decl := range e.Symbol.Declarations() {
			if decl.Parent() == nil {
				resolveDeclarationTag(col, decl, metadata.TagNone, e.Exported)
			}
		}
	}
}

func resolveDeclarationTag(col *collector.Collector, decl *astmodel.AstDeclaration, parentTag metadata.ReleaseTag, topLevel bool) {
	sm := col.FetchSymbolMetadata(decl.Symbol, parentTag, topLevel)
	for _, child := range decl.Children() {
		resolveDeclarationTag(col, child, sm.ReleaseTag, false)
	}
}

// checkTypeLeaks implements §4.5's type-leak check: for every admitted
// entity's declarations, compare its resolved release tag against every
// symbol it references that also has an admitted entity. Every symbol's
// tag was already resolved top-down by resolveReleaseTags, so these
// FetchSymbolMetadata calls are cache hits regardless of the arguments
// passed here.
func (p *Pipeline) checkTypeLeaks(col *collector.Collector) {
	for _, e := range col.Entities() {
		sm := col.FetchSymbolMetadata(e.Symbol, metadata.TagNone, e.Exported)
		for _, decl := range e.Symbol.Declarations() {
			for _, ref := range decl.ReferencedAstSymbols() {
				refEntity, ok := col.TryGetEntityBySymbol(ref)
				if !ok {
					continue
				}
				refTag := col.FetchSymbolMetadata(ref, metadata.TagNone, refEntity.Exported).ReleaseTag
				col.CheckTypeLeak(decl, sm.ReleaseTag, ref, refTag)
			}
		}
	}
}

func entryModuleName(path string) string {
	return path
}

func (p *Pipeline) hasPackageDocumentation(sf *facade.SourceFile) bool {
	count := int(sf.Root.NamedChildCount())
	for i := 0; i < count; i++ {
		stmt := sf.Root.NamedChild(uint(i))
		if stmt.GrammarName() != "comment" {
			continue
		}
		raw := string(stmt.Utf8Text(sf.Text))
		if !strings.HasPrefix(raw, "/**") {
			continue
		}
		c := doccomment.Parse(raw)
		if c.HasModifier(doccomment.TagPackageDocumentation) {
			return true
		}
	}
	return false
}
