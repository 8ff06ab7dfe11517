package collector

import (
	"go/ast"
	"go/parser"
	"go/token"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// labelSetLiterals reports composite literals of labels.* types. A literal
// like labels.DatabaseType{} compiles outside package labels and leaves
// every label empty, so label sets must come from the constructors.
func labelSetLiterals(fset *token.FileSet, f *ast.File) []string {
	var found []string
	ast.Inspect(f, func(n ast.Node) bool {
		lit, ok := n.(*ast.CompositeLit)
		if !ok {
			return true
		}
		sel, ok := lit.Type.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		if pkg, ok := sel.X.(*ast.Ident); ok && pkg.Name == "labels" {
			found = append(found, fset.Position(lit.Pos()).String()+": labels."+sel.Sel.Name+"{...}")
		}
		return true
	})
	return found
}

// keyedLiterals reports composite literals with field keys.
func keyedLiterals(fset *token.FileSet, f *ast.File) []string {
	var found []string
	ast.Inspect(f, func(n ast.Node) bool {
		lit, ok := n.(*ast.CompositeLit)
		if !ok {
			return true
		}
		for _, elt := range lit.Elts {
			if _, ok := elt.(*ast.KeyValueExpr); ok {
				found = append(found, fset.Position(lit.Pos()).String())
				break
			}
		}
		return true
	})
	return found
}

func parseSources(t *testing.T, pattern string) (*token.FileSet, []*ast.File) {
	t.Helper()
	paths, err := filepath.Glob(pattern)
	require.NoError(t, err)

	fset := token.NewFileSet()
	var files []*ast.File
	for _, p := range paths {
		if strings.HasSuffix(p, "_test.go") {
			continue
		}
		f, err := parser.ParseFile(fset, p, nil, 0)
		require.NoError(t, err)
		files = append(files, f)
	}
	require.NotEmpty(t, files)
	return fset, files
}

func Test_labelSetLiterals(t *testing.T) {
	const src = `package collector

func update(g *GaugeVec[labels.DatabaseType], m *GaugeVec[labels.Database]) {
	g.Set(labels.DatabaseType{}, 10)
	g.Set(labels.NewDatabaseType("db1", "read"), 10)
	m.Set(labels.Database{}, 1)
}
`
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "update.go", src, 0)
	require.NoError(t, err)

	found := labelSetLiterals(fset, f)
	require.Len(t, found, 2)
	assert.Contains(t, found[0], "update.go:4:")
	assert.Contains(t, found[0], "labels.DatabaseType{...}")
	assert.Contains(t, found[1], "labels.Database{...}")
}

func Test_keyedLiterals(t *testing.T) {
	const src = `package labels

func NewDatabaseType(database, stall string) DatabaseType {
	return DatabaseType{database: database}
}

func NewDatabase(database string) Database {
	return Database{database}
}
`
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "labels.go", src, 0)
	require.NoError(t, err)

	found := keyedLiterals(fset, f)
	require.Len(t, found, 1)
	assert.Contains(t, found[0], "labels.go:4:")
}

func TestCollectorsBuildLabelSetsWithConstructors(t *testing.T) {
	fset, files := parseSources(t, "*.go")
	for _, f := range files {
		assert.Empty(t, labelSetLiterals(fset, f))
	}
}

func TestLabelConstructorsArePositional(t *testing.T) {
	fset, files := parseSources(t, filepath.Join("labels", "*.go"))
	for _, f := range files {
		assert.Empty(t, keyedLiterals(fset, f))
	}
}
