package qr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatrixIsSquare(t *testing.T) {
	m, err := Matrix("https://example.com/landing")
	require.NoError(t, err)
	require.NotEmpty(t, m)
	for _, row := range m {
		assert.Len(t, row, len(m))
	}
}

func TestMatrixEmptyTargetFallsBack(t *testing.T) {
	m, err := Matrix("")
	require.NoError(t, err)
	assert.NotEmpty(t, m)
}

func TestMatrixPrependsScheme(t *testing.T) {
	bare, err := Matrix("example.com")
	require.NoError(t, err)
	full, err := Matrix("https://example.com")
	require.NoError(t, err)
	assert.Equal(t, full, bare)
}
