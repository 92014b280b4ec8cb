package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apilens/apilens/pkg/facade"
	"github.com/apilens/apilens/pkg/parser"
	"github.com/apilens/apilens/pkg/parser/queries"
	"github.com/apilens/apilens/pkg/util"
)

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	full := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func setupScanTarget(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "index.ts", "export function greet(): void {}\n")
	writeFile(t, dir, "internal.ts", "export class Helper {}\n")
	writeFile(t, dir, "index.d.ts", "export declare function greet(): void;\n")
	writeFile(t, dir, "index.test.ts", "test('x', () => {});\n")
	writeFile(t, dir, "node_modules/dep/index.ts", "export const dep = 1;\n")
	return dir
}

func setupFacadeProgram(t *testing.T) (*facade.Program, func()) {
	t.Helper()
	logger := util.NewLogger(util.DefaultLoggerConfig())
	pm := parser.NewParserManager(logger)
	qm := queries.NewQueryManager(pm, logger)
	program := facade.NewProgram(pm, qm, logger)
	return program, func() {
		program.Close()
		qm.Close()
		pm.Close()
	}
}

func TestScan_LoadsMatchingFilesAndSkipsExcluded(t *testing.T) {
	dir := setupScanTarget(t)

	logger := util.NewLogger(util.DefaultLoggerConfig())
	scanner := NewScanner(logger)
	defer scanner.Close()

	program, cleanup := setupFacadeProgram(t)
	defer cleanup()

	stats, err := scanner.Scan(dir, DefaultOptions(), program)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.FilesDiscovered)
	assert.Equal(t, 2, stats.FilesLoaded)
	assert.Equal(t, 0, stats.FilesFailed)

	assert.NotNil(t, program.File(filepath.Join(dir, "index.ts")))
	assert.NotNil(t, program.File(filepath.Join(dir, "internal.ts")))
	assert.Nil(t, program.File(filepath.Join(dir, "index.d.ts")))
	assert.Nil(t, program.File(filepath.Join(dir, "index.test.ts")))
	assert.Nil(t, program.File(filepath.Join(dir, "node_modules/dep/index.ts")))
}

func TestScan_EmptyDirectoryProducesNoFiles(t *testing.T) {
	dir := t.TempDir()

	logger := util.NewLogger(util.DefaultLoggerConfig())
	scanner := NewScanner(logger)
	defer scanner.Close()

	program, cleanup := setupFacadeProgram(t)
	defer cleanup()

	stats, err := scanner.Scan(dir, DefaultOptions(), program)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.FilesDiscovered)
	assert.Equal(t, 0, stats.FilesLoaded)
}

func TestScan_InvalidPatternErrors(t *testing.T) {
	dir := setupScanTarget(t)

	logger := util.NewLogger(util.DefaultLoggerConfig())
	scanner := NewScanner(logger)
	defer scanner.Close()

	program, cleanup := setupFacadeProgram(t)
	defer cleanup()

	_, err := scanner.Scan(dir, Options{Include: []string{"["}}, program)
	assert.Error(t, err)
}

func TestScan_CustomIncludeNarrowsSelection(t *testing.T) {
	dir := setupScanTarget(t)

	logger := util.NewLogger(util.DefaultLoggerConfig())
	scanner := NewScanner(logger)
	defer scanner.Close()

	program, cleanup := setupFacadeProgram(t)
	defer cleanup()

	opts := Options{Include: []string{"internal.ts"}}
	stats, err := scanner.Scan(dir, opts, program)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.FilesDiscovered)
	assert.Equal(t, 1, stats.FilesLoaded)
	assert.NotNil(t, program.File(filepath.Join(dir, "internal.ts")))
	assert.Nil(t, program.File(filepath.Join(dir, "index.ts")))
}
