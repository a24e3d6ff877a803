package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtding233/banner-gacha/internal/gacha"
)

const testDefaults = `
version: "2026.1"
rarity: {min: 3, max: 6}
fallback_rates: {3: 9000}
banner:
  active: true
  rates: {6: 60, 5: 510, 4: 5100}
  pity:
    6: {hard: 90, soft_start: 73, soft_increase: 600}
    5: {hard: 10}
  default_tier: 3
`

const testLimited = `
id: limited-001
name: Crimson Moon
start: 1000
end: 2000
rates: {6: 100}
pity:
  6: {hard: 80}
items:
  - {id: moonblade, tier: 6, boost: 30000}
  - {id: ember, tier: 6}
  - {id: lantern, tier: 5}
  - {id: pebble, tier: 3}
`

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestLoadMergesDefaultsIntoBanner(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "defaults.yaml"), testDefaults)
	writeFile(t, filepath.Join(dir, "banners", "limited.yaml"), testLimited)

	cat, err := NewLoader(dir).Load()
	require.NoError(t, err)

	assert.Equal(t, "2026.1", cat.Version)
	assert.Equal(t, gacha.RarityLimits{Min: 3, Max: 6}, cat.Limits)
	assert.Equal(t, uint32(9000), cat.Fallback.Rate(3))
	require.Len(t, cat.Banners, 1)

	b := cat.Banners[0]
	assert.Equal(t, "limited-001", b.ID)
	assert.Equal(t, int64(1000), b.StartTime)
	assert.Equal(t, uint32(100), b.Config.BaseRates[6], "banner overrides default rate")
	assert.Equal(t, uint32(510), b.Config.BaseRates[5], "default fills the rest")

	tp := b.Config.Pity.ForTier(6)
	assert.Equal(t, uint32(80), tp.HardPity)
	assert.Equal(t, uint32(73), tp.SoftStart)
	assert.Equal(t, uint32(600), tp.SoftIncrease)

	require.NotNil(t, b.Config.DefaultTier)
	assert.Equal(t, gacha.Tier(3), *b.Config.DefaultTier)
	assert.Equal(t, []string{"ember", "moonblade"}, b.PoolForTier(6))
	assert.Equal(t, uint32(30000), b.Boost("moonblade"))
}

func TestLoadDerivesIDFromFileName(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "banners", "standard.yaml"), "name: Standard\nrates: {4: 10000}\n")

	cat, err := NewLoader(dir).Load()
	require.NoError(t, err)
	require.Len(t, cat.Banners, 1)
	assert.Equal(t, "standard", cat.Banners[0].ID)
	assert.Equal(t, gacha.DefaultRarityLimits(), cat.Limits)
}

func TestLoadCollectsValidationErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "banners", "a.yaml"), `
id: a
start: 10
end: 5
rates: {6: 20000}
pity:
  6: {hard: 10, soft_start: 10}
items:
  - {id: x, tier: 9}
  - {id: y, tier: 5, boost: 0}
`)
	writeFile(t, filepath.Join(dir, "banners", "b.yaml"), "id: a\nname: dup\n")

	_, err := NewLoader(dir).Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidCatalog))
	for _, want := range []string{
		"name is required",
		"end must be after start",
		"rates[6]",
		"soft_start must be < hard",
		"tier 9 out of range",
		"boost must be > 0",
		"duplicate id",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoadEmptyDirectory(t *testing.T) {
	cat, err := NewLoader(t.TempDir()).Load()
	require.NoError(t, err)
	assert.Empty(t, cat.Banners)
}

func TestWatcherReportsChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "banners", "a.yaml")
	writeFile(t, path, "name: A\n")

	var (
		mu      sync.Mutex
		changed []string
	)
	w := NewWatcher(Paths{BaseDir: dir}, 10*time.Millisecond, func(paths []string) {
		mu.Lock()
		defer mu.Unlock()
		changed = append(changed, paths...)
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// wait for the priming scan before touching the file
	time.Sleep(50 * time.Millisecond)
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(changed) > 0 && changed[0] == path
	}, time.Second, 10*time.Millisecond)
}
