package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xtding233/banner-gacha/internal/store/storetest"
)

// Integration tests run only against a disposable database named by GACHA_TEST_DATABASE_URL.
func TestStore(t *testing.T) {
	connString := os.Getenv("GACHA_TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("GACHA_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	pool, err := NewPool(ctx, connString, 4, 0, 0)
	require.NoError(t, err)
	require.NoError(t, Migrate(ctx, pool))

	_, err = pool.Exec(ctx, "TRUNCATE banners, players, admin_registry, system_state")
	require.NoError(t, err)

	s, err := New(pool)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	storetest.Run(t, s)
}
