package sqlxrepos

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/examhall/tests"
)

func TestSelectAll_scanError(t *testing.T) {
	db := testutil.PrepareDB(t)
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var dest []struct {
		Other int `db:"other"`
	}
	assert.Error(t, selectAll(ctx, db, &dest, `SELECT 1 AS id`), "no destination for id")

	// the only connection is free again
	var n int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT 1`).Scan(&n))
	assert.Equal(t, 1, n)
}
