// Package tests contains contract tests run on a single-node neotest chain.
package tests

import (
	"crypto/rand"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/neotest"
	"github.com/nspcc-dev/neo-go/pkg/neotest/chain"
)

func randomBytes(n int) []byte {
	a := make([]byte, n)
	_, _ = rand.Read(a)
	return a
}

func newExecutor(t *testing.T) *neotest.Executor {
	bc, acc := chain.NewSingle(t)
	return neotest.NewExecutor(t, bc, acc, acc)
}
