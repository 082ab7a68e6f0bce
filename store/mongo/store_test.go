package mongo_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xraph/factoring/store"
	"github.com/xraph/factoring/store/mongo"
	"github.com/xraph/factoring/store/storetest"
)

// TestConformance runs against FACTORING_TEST_MONGO_URI when set. The
// server must be a replica set for transactions.
func TestConformance(t *testing.T) {
	uri := os.Getenv("FACTORING_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("FACTORING_TEST_MONGO_URI not set")
	}

	storetest.Run(t, func(t *testing.T) store.Store {
		ctx := context.Background()
		name := fmt.Sprintf("factoring_test_%d", time.Now().UnixNano())
		s, err := mongo.Open(ctx, uri, name)
		require.NoError(t, err)
		t.Cleanup(func() {
			_ = s.DB().Drop(context.Background())
			_ = s.Close()
		})
		require.NoError(t, s.Migrate(ctx))
		return s
	})
}

func TestOpenRequiresURI(t *testing.T) {
	_, err := mongo.Open(context.Background(), "", "factoring")
	require.Error(t, err)
}
