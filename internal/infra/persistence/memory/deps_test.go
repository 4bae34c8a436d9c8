package memory

import (
	"strings"
	"testing"

	"liderforte/testutil"
)

// The memory store is the base of every driver and depends on the domain only.
func TestMemoryStoreDependsOnDomainOnly(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", func(path string) bool {
		return strings.HasPrefix(path, "liderforte/") && path != "liderforte/pkg/domain"
	}, "memory store imports")
}
