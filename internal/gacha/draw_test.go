package gacha

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// standardBanner: tier 6 100bps, tier 5 250bps (soft 75/+50, hard 90), tier 4 fills the rest.
func standardBanner(t *testing.T) *Banner {
	t.Helper()
	limits := DefaultRarityLimits()
	b, err := NewBanner("std", "Standard", "", 0, 0)
	require.NoError(t, err)
	require.NoError(t, b.SetBaseRate(limits, 6, 100))
	require.NoError(t, b.SetBaseRate(limits, 5, 250))
	require.NoError(t, b.SetBaseRate(limits, 4, 9650))
	require.NoError(t, b.SetHardPity(limits, 5, 90))
	require.NoError(t, b.SetSoftPityStart(limits, 5, 75))
	require.NoError(t, b.SetSoftPityIncrease(limits, 5, 50))
	for item, tier := range map[string]Tier{"mythic": 6, "epic": 5, "rare": 4} {
		_, err := b.AddItem(limits, item, tier)
		require.NoError(t, err)
	}
	return b
}

func TestDrawWalksTiersRarestFirst(t *testing.T) {
	b := standardBanner(t)

	tests := []struct {
		roll uint64
		want Tier
	}{
		{0, 6},
		{99, 6},
		{100, 5},
		{349, 5},
		{350, 4},
		{9999, 4},
	}
	for _, tt := range tests {
		eng := NewEngine(NewSequenceEntropy(tt.roll))
		out, err := eng.Draw(b, RarityRateRegistry{}, nil, 0)
		require.NoError(t, err)
		assert.Equal(t, tt.want, out.Tier, "roll %d", tt.roll)
		assert.Equal(t, tt.roll, out.Roll)
		assert.False(t, out.FellThrough)
	}
}

func TestSequentialDrawsUpdatePity(t *testing.T) {
	b := standardBanner(t)
	eng := NewEngine(NewSequenceEntropy(5000, 200))

	first, err := eng.Draw(b, RarityRateRegistry{}, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, Tier(4), first.Tier)
	assert.Equal(t, uint32(1), first.PityAfter.Get(5))
	assert.Equal(t, uint32(1), first.PityAfter.Get(6))

	second, err := eng.Draw(b, RarityRateRegistry{}, first.PityAfter, 0)
	require.NoError(t, err)
	assert.Equal(t, Tier(5), second.Tier)
	assert.Equal(t, uint32(0), second.PityAfter.Get(5), "hit resets")
	assert.Equal(t, uint32(2), second.PityAfter.Get(6), "tier 5 is still a miss for tier 6")
	assert.Equal(t, uint32(1), second.PityAfter.Get(4))
}

func TestHardPityGuaranteesTierOrRarer(t *testing.T) {
	b := standardBanner(t)
	state := PityState{5: 90}

	for _, roll := range []uint64{100, 5000, 9999} {
		eng := NewEngine(NewSequenceEntropy(roll))
		out, err := eng.Draw(b, RarityRateRegistry{}, state, 0)
		require.NoError(t, err)
		assert.Equal(t, Tier(5), out.Tier, "roll %d", roll)
		assert.True(t, out.Guaranteed)
	}

	// a rarer tier keeps its own claim on the mass
	eng := NewEngine(NewSequenceEntropy(42))
	out, err := eng.Draw(b, RarityRateRegistry{}, state, 0)
	require.NoError(t, err)
	assert.Equal(t, Tier(6), out.Tier)
	assert.Equal(t, uint32(91), out.PityAfter.Get(5), "guarantee repeats under continued misses")

	rates, err := Rates(b, RarityRateRegistry{}, out.PityAfter)
	require.NoError(t, err)
	assert.Equal(t, MaxBps, rates[1].Effective)
}

func TestHardPityTieBreakPicksHighestTier(t *testing.T) {
	b := standardBanner(t)
	require.NoError(t, b.SetHardPity(DefaultRarityLimits(), 6, 10))
	state := PityState{5: 95, 6: 12}

	for _, roll := range []uint64{0, 5000, 9999} {
		eng := NewEngine(NewSequenceEntropy(roll))
		out, err := eng.Draw(b, RarityRateRegistry{}, state, 0)
		require.NoError(t, err)
		assert.Equal(t, Tier(6), out.Tier)
		assert.Equal(t, uint32(96), out.PityAfter.Get(5))
		assert.Equal(t, uint32(0), out.PityAfter.Get(6))
	}
}

func TestDrawFallsThroughToDefaultTier(t *testing.T) {
	limits := DefaultRarityLimits()
	b, err := NewBanner("thin", "Thin", "", 0, 0)
	require.NoError(t, err)
	require.NoError(t, b.SetBaseRate(limits, 6, 100))
	require.NoError(t, b.SetBaseRate(limits, 5, 250))
	_, _ = b.AddItem(limits, "epic", 5)
	_, _ = b.AddItem(limits, "common", 3)

	out, err := NewEngine(NewSequenceEntropy(9000)).Draw(b, RarityRateRegistry{}, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, Tier(5), out.Tier, "lowest tracked tier without a designated default")
	assert.True(t, out.FellThrough)

	require.NoError(t, b.SetDefaultTier(limits, 3))
	out, err = NewEngine(NewSequenceEntropy(9000)).Draw(b, RarityRateRegistry{}, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, Tier(3), out.Tier)
	assert.Equal(t, "common", out.Item)
	assert.Equal(t, uint32(1), out.PityAfter.Get(5))
	assert.Equal(t, uint32(1), out.PityAfter.Get(6))
}

func TestDrawUsesFallbackRegistryRates(t *testing.T) {
	limits := DefaultRarityLimits()
	b, err := NewBanner("fb", "Fallback", "", 0, 0)
	require.NoError(t, err)
	require.NoError(t, b.SetBaseRate(limits, 4, 10000))
	_, _ = b.AddItem(limits, "epic", 5)
	_, _ = b.AddItem(limits, "rare", 4)

	var reg RarityRateRegistry
	require.NoError(t, reg.SetRate(limits, 5, 500))

	out, err := NewEngine(NewSequenceEntropy(499)).Draw(b, reg, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, Tier(5), out.Tier)
	assert.Equal(t, []Tier{5, 4}, TrackedTiers(b, reg))
}

func TestDrawFailsOnEmptyTierPool(t *testing.T) {
	b := standardBanner(t)
	b.RemoveItem("mythic")

	out, err := NewEngine(NewSequenceEntropy(0)).Draw(b, RarityRateRegistry{}, PityState{5: 3}, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyTierPool))
	assert.Empty(t, out.Item)
}

func TestDrawFailsOnInactiveBanner(t *testing.T) {
	b := standardBanner(t)
	require.NoError(t, b.SetTimeWindow(100, 200))

	_, err := NewEngine(NewSequenceEntropy(0)).Draw(b, RarityRateRegistry{}, nil, 50)
	assert.True(t, errors.Is(err, ErrBannerInactive))

	b.SetActive(false)
	_, err = NewEngine(NewSequenceEntropy(0)).Draw(b, RarityRateRegistry{}, nil, 150)
	assert.True(t, errors.Is(err, ErrBannerInactive))
}

func TestDrawRejectsRateThatBypassedValidation(t *testing.T) {
	b := standardBanner(t)
	b.Config.BaseRates[6] = 20000

	_, err := NewEngine(NewSequenceEntropy(0)).Draw(b, RarityRateRegistry{}, nil, 0)
	assert.True(t, errors.Is(err, ErrRateMisconfigured))
}

func TestDrawNoTrackedTiers(t *testing.T) {
	b, err := NewBanner("empty", "Empty", "", 0, 0)
	require.NoError(t, err)
	_, err = NewEngine(nil).Draw(b, RarityRateRegistry{}, nil, 0)
	assert.True(t, errors.Is(err, ErrNoTrackedTiers))
}

func TestFeaturedBoostReweightsWithinTier(t *testing.T) {
	limits := DefaultRarityLimits()
	b, err := NewBanner("feat", "Featured", "", 0, 0)
	require.NoError(t, err)
	require.NoError(t, b.SetBaseRate(limits, 5, 10000))
	for _, item := range []string{"a", "b", "c"} {
		_, err := b.AddItem(limits, item, 5)
		require.NoError(t, err)
	}
	require.NoError(t, b.ConfigureFeaturedBoost("a", 30000))

	eng := NewEngine(NewSeededEntropy(7))
	const n = 50000
	counts := map[string]int{}
	var state PityState
	for i := 0; i < n; i++ {
		out, err := eng.Draw(b, RarityRateRegistry{}, state, 0)
		require.NoError(t, err)
		assert.Equal(t, Tier(5), out.Tier, "boost must not move tier probability")
		counts[out.Item]++
		state = out.PityAfter
	}
	// a weighs 3x: 3/5 of picks
	assert.InDelta(t, 0.6, float64(counts["a"])/n, 0.02)
	assert.InDelta(t, 0.2, float64(counts["b"])/n, 0.02)
	assert.InDelta(t, 0.2, float64(counts["c"])/n, 0.02)
}

func TestItemSelectionIsDeterministic(t *testing.T) {
	limits := DefaultRarityLimits()
	b, err := NewBanner("det", "Det", "", 0, 0)
	require.NoError(t, err)
	require.NoError(t, b.SetBaseRate(limits, 5, 10000))
	for _, item := range []string{"c", "a", "b"} {
		_, _ = b.AddItem(limits, item, 5)
	}

	// pool sorted as a, b, c with weight 10000 each
	out, err := NewEngine(NewSequenceEntropy(0, 10000)).Draw(b, RarityRateRegistry{}, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, "b", out.Item)

	out, err = NewEngine(NewSequenceEntropy(0, 29999)).Draw(b, RarityRateRegistry{}, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, "c", out.Item)
}

func TestDrawN(t *testing.T) {
	b := standardBanner(t)
	eng := NewEngine(NewSequenceEntropy(5000))

	outs, after, err := eng.DrawN(b, RarityRateRegistry{}, PityState{5: 85}, 0, 5)
	require.NoError(t, err)
	require.Len(t, outs, 5)

	// 85..89 follow the soft ramp and miss at roll 5000; the fifth draw sees pity 89
	for _, o := range outs {
		assert.Equal(t, Tier(4), o.Tier)
	}
	assert.Equal(t, uint32(90), after.Get(5))
	assert.Equal(t, uint32(89), outs[4].PityBefore.Get(5))

	_, _, err = eng.DrawN(b, RarityRateRegistry{}, nil, 0, 0)
	assert.True(t, errors.Is(err, ErrInvalidDrawCount))
	_, _, err = eng.DrawN(b, RarityRateRegistry{}, nil, 0, MaxDrawsPerCall+1)
	assert.True(t, errors.Is(err, ErrInvalidDrawCount))
}

func TestDrawNIsAllOrNothing(t *testing.T) {
	b := standardBanner(t)
	b.RemoveItem("epic")
	// second draw hits hard pity on an empty tier 5 pool
	eng := NewEngine(NewSequenceEntropy(5000))

	outs, after, err := eng.DrawN(b, RarityRateRegistry{}, PityState{5: 89}, 0, 3)
	assert.True(t, errors.Is(err, ErrEmptyTierPool))
	assert.Nil(t, outs)
	assert.Equal(t, uint32(89), after.Get(5))
}
