package sqlite

import (
	"strings"
	"testing"

	"liderforte/testutil"
)

func TestSQLiteStoreBuildsOnMemoryStore(t *testing.T) {
	allowed := map[string]bool{
		"liderforte/pkg/domain":                        true,
		"liderforte/internal/infra/persistence/memory": true,
	}
	testutil.AssertNoDirectImports(t, ".", func(path string) bool {
		return strings.HasPrefix(path, "liderforte/") && !allowed[path]
	}, "sqlite store imports")
}
