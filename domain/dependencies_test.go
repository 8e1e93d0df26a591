package domain_test

import (
	"go/parser"
	"go/token"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const modulePath = "github.com/reglet-dev/reglet-bridge"

// TestDomainHasNoOuterDependencies verifies that the domain layer only
// imports itself and the standard library (plus a short allow list).
func TestDomainHasNoOuterDependencies(t *testing.T) {
	fset := token.NewFileSet()

	for _, pkg := range []string{"entities", "errors", "ports"} {
		files, err := filepath.Glob(filepath.Join(".", pkg, "*.go"))
		require.NoError(t, err)
		require.NotEmpty(t, files, "no sources in domain/%s", pkg)

		for _, file := range files {
			if strings.HasSuffix(file, "_test.go") {
				continue
			}
			checkFileImports(t, fset, file, pkg)
		}
	}
}

// allowedThirdParty lists the libraries the domain may use directly.
var allowedThirdParty = []string{
	"github.com/go-playground/validator/v10",
}

func checkFileImports(t *testing.T, fset *token.FileSet, filename, pkg string) {
	t.Helper()

	f, err := parser.ParseFile(fset, filename, nil, parser.ImportsOnly)
	require.NoError(t, err, "failed to parse %s", filename)

	for _, imp := range f.Imports {
		importPath := strings.Trim(imp.Path.Value, `"`)

		switch {
		case strings.HasPrefix(importPath, modulePath+"/domain/"):
		case strings.HasPrefix(importPath, modulePath):
			assert.Fail(t, "domain imports an outer layer",
				"domain/%s (%s) must not import %s", pkg, filepath.Base(filename), importPath)
		case !strings.Contains(strings.Split(importPath, "/")[0], "."):
			// standard library
		default:
			allowed := false
			for _, a := range allowedThirdParty {
				if strings.HasPrefix(importPath, a) {
					allowed = true
				}
			}
			assert.True(t, allowed, "domain/%s (%s) must not import %s",
				pkg, filepath.Base(filename), importPath)
		}
	}
}
