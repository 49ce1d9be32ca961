package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmo-suite/change-request-service/internal/changerequest"
)

func TestSchemaPinsEnumValues(t *testing.T) {
	stmt := schemaStatements[0]
	for _, s := range changerequest.Statuses() {
		assert.Contains(t, stmt, "'"+string(s)+"'")
	}
	for _, typ := range changerequest.Types() {
		assert.Contains(t, stmt, "'"+string(typ)+"'")
	}
}

func TestOpenSQLite_Idempotent(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/cr.db"

	first, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer second.Close()

	var n int
	require.NoError(t, second.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('change_requests', 'comments')`,
	).Scan(&n))
	assert.Equal(t, 2, n)
}
