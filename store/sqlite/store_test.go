package sqlite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xraph/factoring/store"
	"github.com/xraph/factoring/store/sqlite"
	"github.com/xraph/factoring/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := sqlite.OpenMemory()
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		require.NoError(t, s.Migrate(context.Background()))
		return s
	})
}

func TestMigrateIdempotent(t *testing.T) {
	s, err := sqlite.OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Migrate(ctx))
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := sqlite.Open("  ")
	require.Error(t, err)
}
