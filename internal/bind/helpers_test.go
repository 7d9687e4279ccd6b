package bind

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conneroisu/kiln/internal/ast"
)

func formOf(t *testing.T, nodes []ast.Node) *ast.Element {
	t.Helper()
	require.Len(t, nodes, 1)
	form, ok := nodes[0].(*ast.Element)
	require.True(t, ok, "expected an element, got %T", nodes[0])
	return form
}
