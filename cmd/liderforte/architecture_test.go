package main

import (
	"testing"

	"liderforte/testutil"
)

func TestCLIUsesServiceAndBlobFactories(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InfraImport, "the CLI opens drivers through core and blob")
}
