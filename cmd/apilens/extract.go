package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/apilens/apilens/pkg/apimodel"
	"github.com/apilens/apilens/pkg/diag"
	"github.com/apilens/apilens/pkg/discovery"
	"github.com/apilens/apilens/pkg/pipeline"
	"github.com/apilens/apilens/pkg/util"
)

// extractRequest is the fully-resolved input to one extraction run, after
// flags have been merged with .apilens/config.yaml.
type extractRequest struct {
	root         string
	entryModules []string
	packageName  string
	localBuild   bool
	include      []string
	exclude      []string
}

// resolveExtractRequest applies the fallback chain flags > project config >
// built-in defaults, matching the teacher's resolveCatalogPath precedence.
func resolveExtractRequest(args []string) (extractRequest, error) {
	cfg, err := loadProjectConfig()
	if err != nil {
		return extractRequest{}, fmt.Errorf("read .apilens/config.yaml: %w", err)
	}

	req := extractRequest{root: "."}
	if v := flagValue(args, "--root", ""); v != "" {
		req.root = v
	}

	req.entryModules = flagValues(args, "--entry")
	if len(req.entryModules) == 0 && cfg != nil {
		req.entryModules = cfg.EntryModules
	}
	if len(req.entryModules) == 0 {
		return extractRequest{}, fmt.Errorf("at least one --entry is required")
	}

	req.packageName = flagValue(args, "--package", "")
	if req.packageName == "" && cfg != nil {
		req.packageName = cfg.PackageName
	}
	if req.packageName == "" {
		base := filepath.Base(req.entryModules[0])
		req.packageName = strings.TrimSuffix(base, filepath.Ext(base))
	}

	req.localBuild = hasFlag(args, "--local")
	if cfg != nil && cfg.LocalBuild {
		req.localBuild = true
	}

	req.include = discovery.DefaultOptions().Include
	req.exclude = discovery.DefaultOptions().Exclude
	if cfg != nil && len(cfg.Include) > 0 {
		req.include = cfg.Include
	}
	if cfg != nil && len(cfg.Exclude) > 0 {
		req.exclude = cfg.Exclude
	}

	return req, nil
}

// runPackage discovers req.root's source files, loads them into a fresh
// façade Program, and runs the extraction pipeline over every entry module
// in req.entryModules, sharing one Collector across them per §C's
// multiple-entry-point support. The Program and its backing FileCache are
// closed before returning — Result holds no slices into source buffers,
// every string it carries was copied out during span emission.
func runPackage(req extractRequest, logger *slog.Logger) (*pipeline.Result, error) {
	program := pipeline.NewProgram(logger)
	defer program.Close()

	scanner := discovery.NewScanner(logger)
	defer scanner.Close()

	opts := discovery.Options{Include: req.include, Exclude: req.exclude}
	stats, err := scanner.Scan(req.root, opts, program)
	if err != nil {
		return nil, fmt.Errorf("discover sources under %s: %w", req.root, err)
	}
	if stats.FilesFailed > 0 {
		logger.Warn("some source files failed to load", "failed", stats.FilesFailed)
	}

	entryPaths := make([]string, len(req.entryModules))
	for i, e := range req.entryModules {
		entryPaths[i] = filepath.Join(req.root, e)
	}

	p, err := pipeline.New(pipeline.Config{
		PackageName:  req.packageName,
		EntryModules: entryPaths,
		LocalBuild:   req.localBuild,
		Logger:       logger,
	}, program)
	if err != nil {
		return nil, err
	}

	return p.Run()
}

func runExtract(args []string) error {
	req, err := resolveExtractRequest(args)
	if err != nil {
		return err
	}
	logger := util.NewLogger(util.DefaultLoggerConfig())

	result, err := runPackage(req, logger)
	if err != nil {
		return err
	}

	if err := writeReviewFile(args, result.ReviewFile); err != nil {
		return err
	}
	if err := writeApiModel(args, result.ApiModel); err != nil {
		return err
	}
	printDiagnostics(result.Diagnostics)

	if hasErrorDiagnostics(result.Diagnostics) {
		return fmt.Errorf("extraction produced %d error-severity diagnostic(s)", countErrors(result.Diagnostics))
	}
	return nil
}

func writeReviewFile(args []string, text string) error {
	if out := flagValue(args, "--out", ""); out != "" {
		return os.WriteFile(out, []byte(text), 0644)
	}
	fmt.Println(text)
	return nil
}

func writeApiModel(args []string, model *apimodel.Item) error {
	out := flagValue(args, "--api-model", "")
	if out == "" {
		return nil
	}
	body, err := apimodel.ToJSON(model)
	if err != nil {
		return fmt.Errorf("marshal api model: %w", err)
	}
	return os.WriteFile(out, body, 0644)
}

func printDiagnostics(diags []diag.Diagnostic) {
	for _, d := range diags {
		fmt.Fprintln(os.Stderr, d.String())
	}
}

func hasErrorDiagnostics(diags []diag.Diagnostic) bool {
	return countErrors(diags) > 0
}

func countErrors(diags []diag.Diagnostic) int {
	n := 0
	for _, d := range diags {
		if d.Severity == diag.SeverityError {
			n++
		}
	}
	return n
}
