package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xtding233/banner-gacha/internal/admin"
	"github.com/xtding233/banner-gacha/internal/catalog"
	"github.com/xtding233/banner-gacha/internal/compat"
	"github.com/xtding233/banner-gacha/internal/gacha"
	"github.com/xtding233/banner-gacha/internal/store"
	"github.com/xtding233/banner-gacha/internal/token"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type MockWallet struct {
	mock.Mock
}

func (m *MockWallet) Deposit(ctx context.Context, player string, amount uint64) error {
	args := m.Called(ctx, player, amount)
	return args.Error(0)
}

func (m *MockWallet) Withdraw(ctx context.Context, player string, amount uint64) error {
	args := m.Called(ctx, player, amount)
	return args.Error(0)
}

func (m *MockWallet) Balance(ctx context.Context, player string) (uint64, error) {
	args := m.Called(ctx, player)
	return args.Get(0).(uint64), args.Error(1)
}

// failingPlayers rejects every pity write.
type failingPlayers struct {
	*store.Memory
}

func (failingPlayers) SavePlayer(context.Context, *gacha.Player) error {
	return errors.New("disk full")
}

// failingCatalog rejects every catalog write.
type failingCatalog struct {
	*store.Memory
}

func (failingCatalog) ApplyCatalog(context.Context, store.System, []*gacha.Banner, []*gacha.Banner) error {
	return errors.New("disk full")
}

type fixture struct {
	svc     *Service
	store   store.Store
	root    admin.Cap
	banner  *gacha.Banner
	bcap    admin.Cap
	entropy *gacha.SequenceEntropy
}

func newFixture(t *testing.T, st store.Store, opts Options) *fixture {
	t.Helper()
	ctx := context.Background()
	entropy := gacha.NewSequenceEntropy(5000)
	if opts.Entropy == nil {
		opts.Entropy = entropy
	}
	opts.Clock = func() time.Time { return epoch }
	svc := New(st, opts)

	root, err := svc.Init(ctx)
	require.NoError(t, err)
	require.NotNil(t, root)

	b, bcap, err := svc.CreateBanner(ctx, *root, BannerSpec{ID: "std", Name: "Standard"})
	require.NoError(t, err)
	for tier, bps := range map[gacha.Tier]uint32{6: 100, 5: 250, 4: 9650} {
		_, err = svc.SetBaseRate(ctx, bcap, b.ID, tier, bps)
		require.NoError(t, err)
	}
	_, err = svc.ConfigurePity(ctx, bcap, b.ID, 5, gacha.PityUpdate{
		HardPity:     ptr(uint32(90)),
		SoftStart:    ptr(uint32(75)),
		SoftIncrease: ptr(uint32(50)),
	})
	require.NoError(t, err)
	for item, tier := range map[string]gacha.Tier{"mythic": 6, "epic": 5, "rare": 4} {
		b, err = svc.AddPoolItem(ctx, bcap, "std", item, tier)
		require.NoError(t, err)
	}
	return &fixture{svc: svc, store: st, root: *root, banner: b, bcap: bcap, entropy: entropy}
}

func ptr[T any](v T) *T { return &v }

func TestInitBootstrapsOnce(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	svc := New(st, Options{})

	root, err := svc.Init(ctx)
	require.NoError(t, err)
	require.NotNil(t, root)

	again, err := svc.Init(ctx)
	require.NoError(t, err)
	assert.Nil(t, again)

	regID, err := svc.RegistryID(ctx)
	require.NoError(t, err)
	assert.Equal(t, regID, root.ForObject)
}

func TestCreateBannerRequiresRegistryCap(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, store.NewMemory(), Options{})

	_, _, err := f.svc.CreateBanner(ctx, f.bcap, BannerSpec{Name: "Other"})
	assert.ErrorIs(t, err, admin.ErrWrongScope)

	b, bcap, err := f.svc.CreateBanner(ctx, f.root, BannerSpec{Name: "Generated"})
	require.NoError(t, err)
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, b.ID, bcap.ForObject)

	_, _, err = f.svc.CreateBanner(ctx, f.root, BannerSpec{ID: "std", Name: "Dup"})
	assert.ErrorIs(t, err, store.ErrAlreadyExists)

	_, _, err = f.svc.CreateBanner(ctx, f.root, BannerSpec{Name: "Bad", StartTime: 10, EndTime: 5})
	assert.ErrorIs(t, err, gacha.ErrInvalidTimeRange)
}

func TestBannerCapIsScopedToItsBanner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, store.NewMemory(), Options{})

	other, otherCap, err := f.svc.CreateBanner(ctx, f.root, BannerSpec{ID: "other", Name: "Other"})
	require.NoError(t, err)

	_, err = f.svc.SetBaseRate(ctx, otherCap, "std", 5, 300)
	assert.ErrorIs(t, err, admin.ErrWrongScope)

	_, err = f.svc.SetBaseRate(ctx, f.root, "std", 5, 300)
	assert.ErrorIs(t, err, admin.ErrWrongScope, "registry cap does not reach banner mutators")

	_, err = f.svc.SetBaseRate(ctx, otherCap, other.ID, 5, 300)
	assert.NoError(t, err)

	b, err := f.svc.GetBanner(ctx, "std")
	require.NoError(t, err)
	assert.Equal(t, uint32(250), b.Config.BaseRates[5])
}

func TestRevocationIsImmediateAndReversible(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, store.NewMemory(), Options{})

	require.NoError(t, f.svc.MarkCapNotEligible(ctx, f.root, f.bcap.ID))
	require.NoError(t, f.svc.MarkCapNotEligible(ctx, f.root, f.bcap.ID))

	_, err := f.svc.SetBannerActive(ctx, f.bcap, "std", false)
	assert.ErrorIs(t, err, admin.ErrIneligible)

	require.NoError(t, f.svc.MarkCapEligible(ctx, f.root, f.bcap.ID))
	b, err := f.svc.SetBannerActive(ctx, f.bcap, "std", false)
	require.NoError(t, err)
	assert.False(t, b.Active)

	err = f.svc.MarkCapEligible(ctx, f.bcap, f.bcap.ID)
	assert.ErrorIs(t, err, admin.ErrWrongScope)

	caps, err := f.svc.ListCaps(ctx, f.root)
	require.NoError(t, err)
	assert.Len(t, caps, 2)
}

func TestRejectedMutationLeavesBannerUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, store.NewMemory(), Options{})

	_, err := f.svc.SetBaseRate(ctx, f.bcap, "std", 5, 10001)
	assert.ErrorIs(t, err, gacha.ErrRateOutOfRange)
	_, err = f.svc.SetBaseRate(ctx, f.bcap, "std", 9, 100)
	assert.ErrorIs(t, err, gacha.ErrTierOutOfRange)
	_, err = f.svc.ConfigureFeaturedBoost(ctx, f.bcap, "std", "ghost", 20000)
	assert.ErrorIs(t, err, gacha.ErrItemNotInPool)
	_, err = f.svc.SetSoftPityStart(ctx, f.bcap, "std", 5, 95)
	assert.ErrorIs(t, err, gacha.ErrInvalidPityConfig)

	b, err := f.svc.GetBanner(ctx, "std")
	require.NoError(t, err)
	assert.Equal(t, f.banner.Version, b.Version)
}

func TestSequentialDrawsPersistPity(t *testing.T) {
	ctx := context.Background()
	entropy := gacha.NewSequenceEntropy(5000, 200)
	f := newFixture(t, store.NewMemory(), Options{Entropy: entropy})

	first, err := f.svc.Draw(ctx, "std", "alice")
	require.NoError(t, err)
	require.Len(t, first.Outcomes, 1)
	assert.Equal(t, gacha.Tier(4), first.Outcomes[0].Tier)
	assert.Equal(t, "rare", first.Outcomes[0].Item)

	pity, err := f.svc.GetPity(ctx, "alice", "std")
	require.NoError(t, err)
	assert.Equal(t, gacha.PityState{6: 1, 5: 1, 4: 0}, pity)

	second, err := f.svc.Draw(ctx, "std", "alice")
	require.NoError(t, err)
	assert.Equal(t, gacha.Tier(5), second.Outcomes[0].Tier)

	pity, err = f.svc.GetPity(ctx, "alice", "std")
	require.NoError(t, err)
	assert.Equal(t, gacha.PityState{6: 2, 5: 0, 4: 1}, pity)

	fresh, err := f.svc.GetPity(ctx, "bob", "std")
	require.NoError(t, err)
	assert.Equal(t, gacha.PityState{6: 0, 5: 0, 4: 0}, fresh)
}

func TestPreviewRatesReflectsPlayerPity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, store.NewMemory(), Options{Entropy: gacha.NewSequenceEntropy(9999)})

	for i := 0; i < 8; i++ {
		_, err := f.svc.DrawMulti(ctx, "std", "alice", 10)
		require.NoError(t, err)
	}
	for i := 0; i < 9; i++ {
		_, err := f.svc.Draw(ctx, "std", "alice")
		require.NoError(t, err)
	}

	rates, err := f.svc.PreviewRates(ctx, "std", "alice")
	require.NoError(t, err)
	require.Len(t, rates, 3)
	assert.Equal(t, gacha.Tier(5), rates[1].Tier)
	assert.Equal(t, uint32(89), rates[1].Pity)
	assert.Equal(t, uint32(1000), rates[1].Effective)

	res, err := f.svc.Draw(ctx, "std", "alice")
	require.NoError(t, err)
	assert.Equal(t, gacha.Tier(4), res.Outcomes[0].Tier, "1000 bps does not claim a roll of 9999")

	res, err = f.svc.Draw(ctx, "std", "alice")
	require.NoError(t, err)
	assert.Equal(t, gacha.Tier(5), res.Outcomes[0].Tier)
	assert.True(t, res.Outcomes[0].Guaranteed)
}

func TestDrawRejectsBlankPlayerAndInactiveBanner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, store.NewMemory(), Options{})

	_, err := f.svc.Draw(ctx, "std", " ")
	assert.ErrorIs(t, err, ErrInvalidPlayer)

	_, err = f.svc.SetBannerActive(ctx, f.bcap, "std", false)
	require.NoError(t, err)
	_, err = f.svc.Draw(ctx, "std", "alice")
	assert.ErrorIs(t, err, gacha.ErrBannerInactive)

	_, err = f.svc.DrawMulti(ctx, "std", "alice", 11)
	assert.ErrorIs(t, err, gacha.ErrInvalidDrawCount)
}

func TestDrawChargesWallet(t *testing.T) {
	ctx := context.Background()
	wallet := new(MockWallet)
	f := newFixture(t, store.NewMemory(), Options{
		Wallet: wallet,
		Cost:   token.Cost{Name: "Star Stone", PerDraw: 160, PerTenDraw: 1600},
	})

	wallet.On("Withdraw", mock.Anything, "alice", uint64(1600)).Return(nil).Once()

	res, err := f.svc.DrawMulti(ctx, "std", "alice", 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(1600), res.Cost)
	assert.Len(t, res.Outcomes, 10)
	wallet.AssertExpectations(t)
}

func TestInsufficientBalanceLeavesPityUnchanged(t *testing.T) {
	ctx := context.Background()
	wallet := new(MockWallet)
	f := newFixture(t, store.NewMemory(), Options{Wallet: wallet, Cost: token.Cost{PerDraw: 160}})

	wallet.On("Withdraw", mock.Anything, "alice", uint64(160)).Return(token.ErrInsufficientBalance).Once()

	_, err := f.svc.Draw(ctx, "std", "alice")
	assert.ErrorIs(t, err, token.ErrInsufficientBalance)

	pity, err := f.svc.GetPity(ctx, "alice", "std")
	require.NoError(t, err)
	assert.Equal(t, gacha.PityState{6: 0, 5: 0, 4: 0}, pity)
	wallet.AssertExpectations(t)
}

func TestFailedDrawIsNotCharged(t *testing.T) {
	ctx := context.Background()
	wallet := new(MockWallet)
	f := newFixture(t, store.NewMemory(), Options{Wallet: wallet, Cost: token.Cost{PerDraw: 160}})

	_, err := f.svc.RemovePoolItem(ctx, f.bcap, "std", "rare")
	require.NoError(t, err)

	_, err = f.svc.DrawMulti(ctx, "std", "alice", 10)
	assert.ErrorIs(t, err, gacha.ErrEmptyTierPool)
	wallet.AssertNotCalled(t, "Withdraw", mock.Anything, mock.Anything, mock.Anything)
}

func TestFailedPersistRefunds(t *testing.T) {
	ctx := context.Background()
	wallet := new(MockWallet)
	f := newFixture(t, failingPlayers{store.NewMemory()}, Options{Wallet: wallet, Cost: token.Cost{PerDraw: 160}})

	wallet.On("Withdraw", mock.Anything, "alice", uint64(160)).Return(nil).Once()
	wallet.On("Deposit", mock.Anything, "alice", uint64(160)).Return(nil).Once()

	_, err := f.svc.Draw(ctx, "std", "alice")
	require.Error(t, err)
	wallet.AssertExpectations(t)
}

func TestConcurrentDrawsSerializePerPlayer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, store.NewMemory(), Options{Entropy: gacha.NewSequenceEntropy(9999)})

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Draw(ctx, "std", "alice")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	pity, err := f.svc.GetPity(ctx, "alice", "std")
	require.NoError(t, err)
	assert.Equal(t, uint32(n), pity.Get(5))
	assert.Equal(t, uint32(n), pity.Get(6))
}

func TestVersionGate(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	f := newFixture(t, st, Options{BinaryVersion: 1})

	upgraded := New(st, Options{BinaryVersion: 2, Entropy: gacha.NewSequenceEntropy(5000)})

	_, err := upgraded.Draw(ctx, "std", "alice")
	assert.ErrorIs(t, err, compat.ErrVersionMismatch)
	_, err = upgraded.SetBaseRate(ctx, f.bcap, "std", 5, 300)
	assert.ErrorIs(t, err, compat.ErrVersionMismatch)

	v, err := upgraded.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, VersionInfo{Binary: 2, Marker: 1}, v)

	_, err = upgraded.Migrate(ctx, f.bcap, 2)
	assert.ErrorIs(t, err, admin.ErrWrongScope)
	_, err = upgraded.Migrate(ctx, f.root, 3)
	assert.ErrorIs(t, err, compat.ErrInvalidMigration)

	v, err = upgraded.Migrate(ctx, f.root, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), v.Marker)

	_, err = upgraded.Draw(ctx, "std", "alice")
	assert.NoError(t, err)
	_, err = f.svc.Draw(ctx, "std", "alice")
	assert.ErrorIs(t, err, compat.ErrVersionMismatch, "the old binary is now stale")
}

func TestSystemSettings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, store.NewMemory(), Options{})

	_, err := f.svc.SetFallbackRate(ctx, f.root, 3, 500)
	require.NoError(t, err)
	_, err = f.svc.SetFallbackRate(ctx, f.bcap, 3, 500)
	assert.ErrorIs(t, err, admin.ErrWrongScope)

	_, err = f.svc.SetRarityLimits(ctx, f.root, 4, 6)
	assert.ErrorIs(t, err, gacha.ErrTierOutOfRange)
	_, err = f.svc.SetRarityLimits(ctx, f.root, 6, 4)
	assert.ErrorIs(t, err, gacha.ErrInvalidRarityRange)

	_, err = f.svc.ClearFallbackRate(ctx, f.root, 3)
	require.NoError(t, err)
	sys, err := f.svc.SetRarityLimits(ctx, f.root, 4, 6)
	require.NoError(t, err)
	assert.Equal(t, gacha.RarityLimits{Min: 4, Max: 6}, sys.Limits)

	_, err = f.svc.SetBaseRate(ctx, f.bcap, "std", 3, 100)
	assert.ErrorIs(t, err, gacha.ErrTierOutOfRange)
}

func TestSimulateRequiresBannerCap(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, store.NewMemory(), Options{})
	params := gacha.SimParams{Trials: 200, DrawsPerTrial: 100, TargetTier: 5, Seed: 11}

	_, err := f.svc.Simulate(ctx, f.root, "std", params)
	assert.ErrorIs(t, err, admin.ErrWrongScope)

	res, err := f.svc.Simulate(ctx, f.bcap, "std", params)
	require.NoError(t, err)
	assert.Equal(t, 20000, res.TotalDraws)
	assert.LessOrEqual(t, res.FirstTarget.P99, 91)
}

func TestWalletOperations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, store.NewMemory(), Options{Wallet: token.NewMemoryWallet(), Cost: token.Cost{PerDraw: 100}})

	_, err := f.svc.Deposit(ctx, f.bcap, "alice", 500)
	assert.ErrorIs(t, err, admin.ErrWrongScope)

	bal, err := f.svc.Deposit(ctx, f.root, "alice", 500)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), bal)

	_, err = f.svc.DrawMulti(ctx, "std", "alice", 3)
	require.NoError(t, err)
	bal, err = f.svc.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(200), bal)

	_, err = f.svc.DrawMulti(ctx, "std", "alice", 3)
	assert.ErrorIs(t, err, token.ErrInsufficientBalance)

	noWallet := newFixture(t, store.NewMemory(), Options{})
	_, err = noWallet.svc.Balance(ctx, "alice")
	assert.ErrorIs(t, err, ErrNoWallet)
}

func TestApplyCatalogCreatesThenReplaces(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, store.NewMemory(), Options{})

	limited, err := gacha.NewBanner("limited", "Limited", "", 0, 0)
	require.NoError(t, err)
	limits := gacha.DefaultRarityLimits()
	require.NoError(t, limited.SetBaseRate(limits, 4, 10000))
	_, err = limited.AddItem(limits, "sword", 4)
	require.NoError(t, err)

	std, err := gacha.NewBanner("std", "Standard v2", "", 0, 0)
	require.NoError(t, err)

	cat := &catalog.Catalog{
		Version:  "2",
		Limits:   limits,
		Fallback: gacha.RarityRateRegistry{Rates: map[gacha.Tier]uint32{3: 10000}},
		Banners:  []*gacha.Banner{limited, std},
	}
	report, err := f.svc.ApplyCatalog(ctx, cat)
	require.NoError(t, err)
	assert.Equal(t, []string{"limited"}, report.Created)
	assert.Equal(t, []string{"std"}, report.Updated)

	got, err := f.svc.GetBanner(ctx, "std")
	require.NoError(t, err)
	assert.Equal(t, "Standard v2", got.Name)
	assert.Greater(t, got.Version, f.banner.Version)

	sys, err := f.svc.System(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(10000), sys.Fallback.Rate(3))

	_, err = f.svc.SetBannerActive(ctx, f.bcap, "std", false)
	assert.NoError(t, err, "existing capability still governs a reloaded banner")

	_, err = f.svc.SetBannerActive(ctx, f.bcap, "limited", false)
	assert.ErrorIs(t, err, admin.ErrWrongScope)
	lcap, err := f.svc.MintCap(ctx, f.root, "limited")
	require.NoError(t, err)
	_, err = f.svc.SetBannerActive(ctx, lcap, "limited", false)
	assert.NoError(t, err)

	banners, err := f.svc.ListBanners(ctx)
	require.NoError(t, err)
	assert.Len(t, banners, 2)
}

func TestApplyCatalogFailureLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, failingCatalog{Memory: store.NewMemory()}, Options{})
	before, err := f.svc.System(ctx)
	require.NoError(t, err)

	fresh, err := gacha.NewBanner("a", "A", "", 0, 0)
	require.NoError(t, err)
	std, err := gacha.NewBanner("std", "Standard v2", "", 0, 0)
	require.NoError(t, err)
	cat := &catalog.Catalog{
		Limits:  gacha.RarityLimits{Min: 2, Max: 3},
		Banners: []*gacha.Banner{fresh, std},
	}
	_, err = f.svc.ApplyCatalog(ctx, cat)
	require.Error(t, err)

	after, err := f.svc.System(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	_, err = f.svc.GetBanner(ctx, "a")
	assert.ErrorIs(t, err, store.ErrNotFound)
	got, err := f.svc.GetBanner(ctx, "std")
	require.NoError(t, err)
	assert.Equal(t, f.banner.Name, got.Name)
	assert.Equal(t, f.banner.Version, got.Version)
}
