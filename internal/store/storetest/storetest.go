// Package storetest holds the behavioral suite every Store implementation must pass.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtding233/banner-gacha/internal/admin"
	"github.com/xtding233/banner-gacha/internal/gacha"
	"github.com/xtding233/banner-gacha/internal/store"
)

// Run exercises s. s must start empty.
func Run(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("system", func(t *testing.T) {
		_, err := s.GetSystem(ctx)
		require.True(t, errors.Is(err, store.ErrNotFound))

		sys := store.System{
			Limits:        gacha.DefaultRarityLimits(),
			Fallback:      gacha.RarityRateRegistry{Rates: map[gacha.Tier]uint32{4: 9000}},
			VersionMarker: 3,
		}
		require.NoError(t, s.SaveSystem(ctx, sys))
		got, err := s.GetSystem(ctx)
		require.NoError(t, err)
		assert.Equal(t, sys, got)

		got.Fallback.Rates[4] = 1
		again, err := s.GetSystem(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint32(9000), again.Fallback.Rate(4))
	})

	reg, root := admin.Bootstrap(time.Unix(1700000000, 0))

	t.Run("registry", func(t *testing.T) {
		_, err := s.GetRegistry(ctx)
		require.True(t, errors.Is(err, store.ErrNotFound))

		require.NoError(t, s.SaveRegistry(ctx, reg))
		got, err := s.GetRegistry(ctx)
		require.NoError(t, err)
		assert.Equal(t, reg.ID, got.ID)
		assert.NoError(t, got.Verify(root, reg.ID))
	})

	t.Run("banners", func(t *testing.T) {
		limits := gacha.DefaultRarityLimits()
		b, err := gacha.NewBanner("b-2", "Second", "desc", 10, 0)
		require.NoError(t, err)
		require.NoError(t, b.SetBaseRate(limits, 5, 250))
		require.NoError(t, b.SetHardPity(limits, 5, 90))
		_, err = b.AddItem(limits, "sword", 5)
		require.NoError(t, err)
		require.NoError(t, b.ConfigureFeaturedBoost("sword", 20000))
		require.NoError(t, b.SetDefaultTier(limits, 5))

		next := reg.Clone()
		bannerCap, err := next.Mint(root, b.ID, time.Unix(1700000001, 0))
		require.NoError(t, err)

		require.NoError(t, s.CreateBanner(ctx, b, next))
		err = s.CreateBanner(ctx, b, next)
		assert.True(t, errors.Is(err, store.ErrAlreadyExists))

		gotReg, err := s.GetRegistry(ctx)
		require.NoError(t, err)
		assert.NoError(t, gotReg.Verify(bannerCap, b.ID), "registry written with the banner")

		got, err := s.GetBanner(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, b, got)

		got.Name = "changed"
		require.NoError(t, s.SaveBanner(ctx, got))
		got2, err := s.GetBanner(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, "changed", got2.Name)

		other, err := gacha.NewBanner("b-1", "First", "", 0, 0)
		require.NoError(t, err)
		require.NoError(t, s.CreateBanner(ctx, other, nil))

		list, err := s.ListBanners(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "b-1", list[0].ID)
		assert.Equal(t, "b-2", list[1].ID)

		_, err = s.GetBanner(ctx, "missing")
		assert.True(t, errors.Is(err, store.ErrNotFound))
		missing, err := gacha.NewBanner("missing", "x", "", 0, 0)
		require.NoError(t, err)
		assert.True(t, errors.Is(s.SaveBanner(ctx, missing), store.ErrNotFound))
	})

	t.Run("catalog is all or nothing", func(t *testing.T) {
		before, err := s.GetSystem(ctx)
		require.NoError(t, err)
		next := before.Clone()
		next.Limits = gacha.RarityLimits{Min: 2, Max: 3}
		next.Fallback = gacha.RarityRateRegistry{Rates: map[gacha.Tier]uint32{3: 10000}}

		fresh, err := gacha.NewBanner("c-new", "Fresh", "", 0, 0)
		require.NoError(t, err)
		ghost, err := gacha.NewBanner("ghost", "Ghost", "", 0, 0)
		require.NoError(t, err)
		taken, err := gacha.NewBanner("b-1", "Taken", "", 0, 0)
		require.NoError(t, err)

		err = s.ApplyCatalog(ctx, next, []*gacha.Banner{fresh}, []*gacha.Banner{ghost})
		assert.True(t, errors.Is(err, store.ErrNotFound), "got %v", err)
		err = s.ApplyCatalog(ctx, next, []*gacha.Banner{fresh, taken}, nil)
		assert.True(t, errors.Is(err, store.ErrAlreadyExists), "got %v", err)

		got, err := s.GetSystem(ctx)
		require.NoError(t, err)
		assert.Equal(t, before, got)
		_, err = s.GetBanner(ctx, "c-new")
		assert.True(t, errors.Is(err, store.ErrNotFound))
		first, err := s.GetBanner(ctx, "b-1")
		require.NoError(t, err)
		assert.Equal(t, "First", first.Name)

		first.Name = "First again"
		first.Version++
		require.NoError(t, s.ApplyCatalog(ctx, next, []*gacha.Banner{fresh}, []*gacha.Banner{first}))

		got, err = s.GetSystem(ctx)
		require.NoError(t, err)
		assert.Equal(t, next, got)
		_, err = s.GetBanner(ctx, "c-new")
		assert.NoError(t, err)
		first, err = s.GetBanner(ctx, "b-1")
		require.NoError(t, err)
		assert.Equal(t, "First again", first.Name)
	})

	t.Run("players", func(t *testing.T) {
		p, err := s.GetPlayer(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "alice", p.ID)
		assert.Equal(t, uint32(0), p.Counter("b-1", 5))

		p.SetPity("b-1", gacha.PityState{5: 7, 6: 12})
		require.NoError(t, s.SavePlayer(ctx, p))

		got, err := s.GetPlayer(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, uint32(7), got.Counter("b-1", 5))
		assert.Equal(t, uint32(12), got.Counter("b-1", 6))

		got.SetPity("b-1", gacha.PityState{5: 0})
		require.NoError(t, s.SavePlayer(ctx, got))
		again, err := s.GetPlayer(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, uint32(0), again.Counter("b-1", 5))
		assert.Equal(t, uint32(0), again.Counter("b-1", 6))
	})
}
