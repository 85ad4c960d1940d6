package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/tabletop-net/internal/storage/postgres"
	"github.com/cory-johannsen/tabletop-net/internal/testutil"
)

func TestKeyValueRepositorySetAndGet(t *testing.T) {
	repo := postgres.NewKeyValueRepository(testutil.NewPool(t))
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "motd", "welcome"))

	got, err := repo.Get(ctx, "motd")
	require.NoError(t, err)
	assert.Equal(t, "welcome", got)
}

func TestKeyValueRepositoryGetMissing(t *testing.T) {
	repo := postgres.NewKeyValueRepository(testutil.NewPool(t))

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, postgres.ErrKeyNotFound)
}

func TestKeyValueRepositorySetUpserts(t *testing.T) {
	repo := postgres.NewKeyValueRepository(testutil.NewPool(t))
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "motd", "one"))
	require.NoError(t, repo.Set(ctx, "motd", "two"))

	got, err := repo.Get(ctx, "motd")
	require.NoError(t, err)
	assert.Equal(t, "two", got)
}

func TestNetworkSecretRotation(t *testing.T) {
	repo := postgres.NewKeyValueRepository(testutil.NewPool(t))
	ctx := context.Background()

	_, err := repo.NetworkSecret(ctx)
	assert.ErrorIs(t, err, postgres.ErrKeyNotFound)

	require.NoError(t, repo.SetNetworkSecret(ctx, "first"))
	secret, err := repo.NetworkSecret(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", secret)

	// Rotation replaces the stored secret in place.
	require.NoError(t, repo.SetNetworkSecret(ctx, "second"))
	secret, err = repo.NetworkSecret(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", secret)
}
