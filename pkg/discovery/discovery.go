// Package discovery finds a package's source files on disk and loads
// them into a compiler façade Program in parallel, using the same
// glob-match-then-worker-pool architecture this codebase's workspace
// scanner uses for its own three-phase pipeline (discover, process,
// index) — rehomed here to load files into a façade.Program instead of a
// symbol index.
package discovery

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/apilens/apilens/pkg/facade"
	"github.com/apilens/apilens/pkg/util"
)

// Options configures which files a Scanner considers part of the package.
type Options struct {
	// Include is a set of doublestar glob patterns matched against paths
	// relative to the scanned root. An empty Include matches no file;
	// DefaultOptions sets it to every .ts/.tsx/.js/.jsx file.
	Include []string
	// Exclude is checked before Include and short-circuits directory
	// traversal when it matches a directory.
	Exclude []string
}

// DefaultOptions excludes the usual dependency and build directories and
// matches every TypeScript/JavaScript source file.
func DefaultOptions() Options {
	return Options{
		Include: []string{"**/*.ts", "**/*.tsx", "**/*.js", "**/*.jsx"},
		Exclude: []string{"**/node_modules/**", "**/dist/**", "**/*.d.ts", "**/*.test.ts", "**/*.spec.ts"},
	}
}

// LoadError pairs a failed file with the error loading it produced.
type LoadError struct {
	Path string
	Err  error
}

// Stats summarizes one Scan call.
type Stats struct {
	FilesDiscovered int
	FilesLoaded     int
	FilesFailed     int
	DiscoveryTime   time.Duration
	LoadTime        time.Duration
	WorkerCount     int
	Errors          []LoadError
}

// Scanner discovers and loads source files for one package root. Loaded
// file contents are served through a util.FileCache, so the façade's Spans
// borrow slices of memory-mapped file data rather than owning a private
// os.ReadFile copy per file.
type Scanner struct {
	logger *slog.Logger
	cache  util.FileCache
}

// NewScanner creates a Scanner with its own FileCache.
func NewScanner(logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := util.DefaultFileCacheConfig()
	cfg.Logger = logger
	return &Scanner{logger: logger, cache: util.NewFileCache(cfg)}
}

// Close releases the Scanner's FileCache, unmapping every loaded file. The
// façade Program a Scan populated must not be used after Close, since its
// SourceFile.Text slices are borrowed from the cache's mmap'd regions.
func (s *Scanner) Close() error {
	return s.cache.Close()
}

// Scan walks root, matches files against opts, and loads every match into
// program via AddFile, using a worker pool sized by
// util.GetOptimalPoolSize — the same sizing formula the parser pool uses,
// so I/O-bound file loading and CPU-bound parsing stay balanced.
func (s *Scanner) Scan(root string, opts Options, program *facade.Program) (*Stats, error) {
	start := time.Now()
	stats := &Stats{}

	files, err := s.discoverFiles(root, opts)
	if err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}
	stats.FilesDiscovered = len(files)
	stats.DiscoveryTime = time.Since(start)

	if len(files) == 0 {
		return stats, nil
	}

	loadStart := time.Now()
	numWorkers := util.GetOptimalPoolSize()
	if numWorkers > len(files) {
		numWorkers = len(files)
	}
	stats.WorkerCount = numWorkers

	jobs := make(chan string)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				mf, err := s.cache.Get(path)
				if err != nil {
					mu.Lock()
					stats.FilesFailed++
					stats.Errors = append(stats.Errors, LoadError{Path: path, Err: err})
					mu.Unlock()
					continue
				}
				if _, err := program.AddFile(path, []byte(mf.Data)); err != nil {
					mu.Lock()
					stats.FilesFailed++
					stats.Errors = append(stats.Errors, LoadError{Path: path, Err: err})
					mu.Unlock()
					continue
				}
				mu.Lock()
				stats.FilesLoaded++
				mu.Unlock()
			}
		}()
	}

	for _, f := range files {
		jobs <- f
	}
	close(jobs)
	wg.Wait()

	stats.LoadTime = time.Since(loadStart)
	s.logger.Info("discovery scan complete",
		"discovered", stats.FilesDiscovered,
		"loaded", stats.FilesLoaded,
		"failed", stats.FilesFailed,
		"workers", numWorkers)

	return stats, nil
}

func (s *Scanner) discoverFiles(root string, opts Options) ([]string, error) {
	for _, p := range opts.Include {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid include pattern %q", p)
		}
	}
	for _, p := range opts.Exclude {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid exclude pattern %q", p)
		}
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.Warn("discovery: walk error", "path", path, "error", err)
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		for _, pattern := range opts.Exclude {
			if matched, _ := doublestar.PathMatch(pattern, rel); matched {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}
		if d.IsDir() {
			return nil
		}
		for _, pattern := range opts.Include {
			if matched, _ := doublestar.PathMatch(pattern, rel); matched {
				files = append(files, path)
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
