package architecture_test

import (
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const modulePath = "scoutgw"

type layerRule struct {
	sourcePrefix string
	forbidden    []string
	hint         string
}

// rules pins the dependency direction of the tree: the domain package is
// import-free, stages and stores see only the domain, services see stages and
// other services, and the HTTP surfaces never reach past the services into
// storage or the warehouse.
var rules = []layerRule{
	{
		sourcePrefix: modulePath + "/internal/domain",
		forbidden:    []string{modulePath},
		hint:         "domain imports nothing from this module",
	},
	{
		sourcePrefix: modulePath + "/internal/gate",
		forbidden: []string{
			modulePath + "/internal/api",
			modulePath + "/internal/app",
			modulePath + "/internal/db",
			modulePath + "/internal/middleware",
			modulePath + "/internal/metrics",
			modulePath + "/internal/ratelimit",
			modulePath + "/internal/service",
			modulePath + "/internal/ui",
			modulePath + "/internal/warehouse",
		},
		hint: "validation stages see only the domain and the catalog",
	},
	{
		sourcePrefix: modulePath + "/internal/service",
		forbidden: []string{
			modulePath + "/internal/api",
			modulePath + "/internal/app",
			modulePath + "/internal/archive",
			modulePath + "/internal/db",
			modulePath + "/internal/metrics",
			modulePath + "/internal/middleware",
			modulePath + "/internal/ratelimit",
			modulePath + "/internal/ui",
			modulePath + "/internal/warehouse",
		},
		hint: "services depend on domain, stages and other services; stores, transports and metrics stay behind interfaces",
	},
	{
		sourcePrefix: modulePath + "/internal/api",
		forbidden: []string{
			modulePath + "/internal/app",
			modulePath + "/internal/archive",
			modulePath + "/internal/db",
			modulePath + "/internal/ratelimit",
			modulePath + "/internal/ui",
			modulePath + "/internal/warehouse",
		},
		hint: "api talks to services, never to storage or the warehouse",
	},
	{
		sourcePrefix: modulePath + "/internal/ui",
		forbidden: []string{
			modulePath + "/internal/api",
			modulePath + "/internal/app",
			modulePath + "/internal/archive",
			modulePath + "/internal/db",
			modulePath + "/internal/ratelimit",
			modulePath + "/internal/warehouse",
		},
		hint: "the console renders from services, never from storage",
	},
	{
		sourcePrefix: modulePath + "/internal/db",
		forbidden: []string{
			modulePath + "/internal/api",
			modulePath + "/internal/app",
			modulePath + "/internal/gate",
			modulePath + "/internal/metrics",
			modulePath + "/internal/middleware",
			modulePath + "/internal/service",
			modulePath + "/internal/ui",
			modulePath + "/internal/warehouse",
		},
		hint: "storage sees only the domain",
	},
	{
		sourcePrefix: modulePath + "/internal/middleware",
		forbidden: []string{
			modulePath + "/internal/api",
			modulePath + "/internal/app",
			modulePath + "/internal/db",
			modulePath + "/internal/service",
			modulePath + "/internal/ui",
			modulePath + "/internal/warehouse",
		},
		hint: "middleware sees only the domain and the config",
	},
	{
		sourcePrefix: modulePath + "/internal/warehouse",
		forbidden: []string{
			modulePath + "/internal/api",
			modulePath + "/internal/app",
			modulePath + "/internal/db",
			modulePath + "/internal/middleware",
			modulePath + "/internal/service",
			modulePath + "/internal/ui",
		},
		hint: "warehouse adapters see only the domain and metrics",
	},
	{
		sourcePrefix: modulePath + "/pkg",
		forbidden:    []string{modulePath + "/internal"},
		hint:         "pkg is the public surface and never reaches into internal",
	},
}

func TestImportBoundaries(t *testing.T) {
	files, err := collectGoFiles(repoRootDir(t))
	require.NoError(t, err)

	violations := make([]string, 0)

	for _, file := range files {
		sourcePkg := packageImportPath(t, file)
		rule, ok := findRule(sourcePkg)
		if !ok {
			continue
		}
		for _, importPath := range moduleImports(t, file) {
			if violatesRule(importPath, rule.forbidden) {
				violations = append(violations,
					sourcePkg+" imports "+importPath+" via "+file+"; "+rule.hint)
			}
		}
	}

	if len(violations) > 0 {
		sort.Strings(violations)
		t.Fatalf("%s", strings.Join(violations, "\n"))
	}
}

// TestPipelineRecordsNoMetrics pins the decision that outcome metrics are
// recorded at the HTTP boundary: the pipeline itself must stay free of
// metrics calls so every counter has exactly one writer.
func TestPipelineRecordsNoMetrics(t *testing.T) {
	root := repoRootDir(t)
	files, err := collectGoFiles(filepath.Join(root, "internal", "service", "gateway"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		for _, importPath := range moduleImports(t, file) {
			require.NotEqual(t, modulePath+"/internal/metrics", importPath,
				"pipeline file %s imports the metrics package", file)
		}
	}
}

func repoRootDir(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	require.NoError(t, err)
	for {
		if _, statErr := os.Stat(filepath.Join(dir, "go.mod")); statErr == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		require.NotEqual(t, dir, parent, "no go.mod above the test directory")
		dir = parent
	}
}

// collectGoFiles returns production .go files under root, skipping tests,
// generated files, and underscore or dot directories the toolchain ignores.
func collectGoFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && (strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			return nil
		}
		if strings.HasSuffix(name, ".gen.go") || strings.HasSuffix(name, "_gen.go") {
			return nil
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

func packageImportPath(t *testing.T, file string) string {
	t.Helper()
	rel, err := filepath.Rel(repoRootDir(t), filepath.Dir(file))
	require.NoError(t, err)
	if rel == "." {
		return modulePath
	}
	return modulePath + "/" + filepath.ToSlash(rel)
}

func moduleImports(t *testing.T, file string) []string {
	t.Helper()
	fset := token.NewFileSet()
	parsed, err := parser.ParseFile(fset, file, nil, parser.ImportsOnly)
	require.NoErrorf(t, err, "parse imports for %s", file)

	var out []string
	for _, imp := range parsed.Imports {
		importPath := strings.Trim(imp.Path.Value, "\"")
		if strings.HasPrefix(importPath, modulePath+"/") {
			out = append(out, importPath)
		}
	}
	return out
}

func findRule(sourcePkg string) (layerRule, bool) {
	for _, rule := range rules {
		if hasPathPrefix(sourcePkg, rule.sourcePrefix) {
			return rule, true
		}
	}
	return layerRule{}, false
}

func violatesRule(importPath string, forbidden []string) bool {
	for _, prefix := range forbidden {
		if hasPathPrefix(importPath, prefix) {
			return true
		}
	}
	return false
}

func hasPathPrefix(value string, prefix string) bool {
	return value == prefix || strings.HasPrefix(value, prefix+"/")
}
