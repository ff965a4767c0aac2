package s0_data

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresRepository_Integration(t *testing.T) {
	// Skip if running in CI without database
	connString := os.Getenv("DATABASE_URL")
	if testing.Short() || connString == "" {
		t.Skip("skipping integration test")
	}

	pool, err := pgxpool.New(context.Background(), connString)
	require.NoError(t, err, "database connection failed")
	defer pool.Close()

	repo := NewPostgresRepository(pool)
	ctx := context.Background()

	require.NoError(t, repo.Ping(ctx))

	pairs, err := repo.FetchRecentContractMinutePairs(ctx, 0, 10)
	require.NoError(t, err)
	if len(pairs) == 0 {
		t.Skip("snapshots table is empty")
	}

	contract := pairs[0].Contract
	minutes, err := repo.FetchSnapshotMinutes(ctx, contract)
	require.NoError(t, err)
	assert.NotEmpty(t, minutes)

	snap, err := repo.FetchSnapshot(ctx, contract, pairs[0].SnapshotMinute)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, contract, snap.Contract)

	_, err = repo.FetchSignalHistory(ctx, contract, 5)
	require.NoError(t, err)
}

func TestLimitArg(t *testing.T) {
	assert.Nil(t, limitArg(0))
	assert.Nil(t, limitArg(-1))
	assert.Equal(t, 25, limitArg(25))
}

func TestDecodeJSONColumn(t *testing.T) {
	var out []int
	require.NoError(t, decodeJSONColumn([]byte(`"[1,2]"`), &out))
	assert.Equal(t, []int{1, 2}, out)

	out = nil
	require.NoError(t, decodeJSONColumn([]byte(`null`), &out))
	assert.Nil(t, out)

	assert.Error(t, decodeJSONColumn([]byte(`{`), &out))
}
