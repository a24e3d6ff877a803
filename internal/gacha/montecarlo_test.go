package gacha

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeHistogram(t *testing.T) {
	// one trial each on draws 1..4
	s := summarize([]int{0, 1, 1, 1, 1})
	assert.InDelta(t, 2.5, s.Mean, 1e-9)
	assert.InDelta(t, 1.25, s.Var, 1e-9)
	assert.Equal(t, 2, s.P50)
	assert.Equal(t, 4, s.P90)
	assert.Equal(t, 4, s.P99)

	// 99 trials on draw 10, one on draw 90
	hist := make([]int, 91)
	hist[10], hist[90] = 99, 1
	s = summarize(hist)
	assert.Equal(t, 10, s.P99)
	assert.InDelta(t, 10.8, s.Mean, 1e-9)

	assert.Equal(t, Stats{}, summarize(nil))
	assert.Equal(t, Stats{}, summarize(make([]int, 5)))
}

func TestSimulateHardPityCapsFirstTarget(t *testing.T) {
	b := standardBanner(t)

	res, err := Simulate(b, RarityRateRegistry{}, SimParams{
		Trials:        500,
		DrawsPerTrial: 100,
		TargetTier:    5,
		Seed:          1,
	})
	require.NoError(t, err)
	assert.Equal(t, 50000, res.TotalDraws)
	assert.Zero(t, res.TargetMisses, "hard pity at 90 guarantees a hit within 91 draws")
	assert.LessOrEqual(t, res.FirstTarget.P99, 91)
	assert.InDelta(t, 1.0, res.TierShare[4]+res.TierShare[5]+res.TierShare[6], 1e-9)
}

func TestSimulateIsSeeded(t *testing.T) {
	b := standardBanner(t)
	p := SimParams{Trials: 50, DrawsPerTrial: 50, TargetTier: 6, Seed: 42}

	a, err := Simulate(b, RarityRateRegistry{}, p)
	require.NoError(t, err)
	c, err := Simulate(b, RarityRateRegistry{}, p)
	require.NoError(t, err)
	assert.Equal(t, a.TierCounts, c.TierCounts)
}

func TestSimulateIgnoresActivityWindow(t *testing.T) {
	b := standardBanner(t)
	b.SetActive(false)
	_, err := Simulate(b, RarityRateRegistry{}, SimParams{Trials: 1, DrawsPerTrial: 1, TargetTier: 4})
	assert.NoError(t, err)
}

func TestSimulateBounds(t *testing.T) {
	b := standardBanner(t)
	for _, p := range []SimParams{
		{Trials: 0, DrawsPerTrial: 1},
		{Trials: MaxSimTrials + 1, DrawsPerTrial: 1},
		{Trials: 1, DrawsPerTrial: 0},
		{Trials: 1, DrawsPerTrial: MaxSimDrawsPerTrial + 1},
	} {
		_, err := Simulate(b, RarityRateRegistry{}, p)
		assert.True(t, errors.Is(err, ErrInvalidInput))
	}
}
