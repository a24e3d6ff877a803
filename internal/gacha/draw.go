package gacha

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/xtding233/banner-gacha/internal/apperr"
)

var (
	ErrBannerInactive    = apperr.New(apperr.CodeBannerInactive, "banner is not active")
	ErrEmptyTierPool     = apperr.New(apperr.CodeEmptyTierPool, "tier pool is empty")
	ErrNoTrackedTiers    = apperr.New(apperr.CodeNoTrackedTiers, "banner has no tracked tiers")
	ErrRateMisconfigured = apperr.New(apperr.CodeInternal, "rate above 10000 bps reached the engine")
	ErrInvalidDrawCount  = apperr.New(apperr.CodeInvalidDrawCount, "invalid draw count")
)

// MaxDrawsPerCall bounds multi-draws.
const MaxDrawsPerCall = 10

// TierRate is one row of the effective rate table for a (banner, pity state) pair.
type TierRate struct {
	Tier       Tier   `json:"tier"`
	Base       uint32 `json:"base_bps"`
	Effective  uint32 `json:"effective_bps"`
	Pity       uint32 `json:"pity"`
	Guaranteed bool   `json:"guaranteed"`
}

// Outcome is the result of a single draw.
type Outcome struct {
	Tier        Tier       `json:"tier"`
	Item        string     `json:"item"`
	Roll        uint64     `json:"roll"`
	Rates       []TierRate `json:"rates"`
	Guaranteed  bool       `json:"guaranteed"`
	FellThrough bool       `json:"fell_through"`
	PityBefore  PityState  `json:"pity_before"`
	PityAfter   PityState  `json:"pity_after"`
}

// Engine combines banner config, pity state and entropy into outcomes. It holds no
// state of its own besides the entropy provider; callers persist PityAfter.
type Engine struct {
	entropy Entropy
}

// NewEngine creates an engine. A nil provider falls back to crypto entropy.
func NewEngine(entropy Entropy) *Engine {
	if entropy == nil {
		entropy = NewCryptoEntropy()
	}
	return &Engine{entropy: entropy}
}

// TrackedTiers returns, in descending order, every tier with a base rate configured on
// the banner or, failing that, in the fallback registry.
func TrackedTiers(b *Banner, reg RarityRateRegistry) []Tier {
	seen := make(map[Tier]uint32, len(b.Config.BaseRates)+len(reg.Rates))
	for t := range reg.Rates {
		seen[t] = 0
	}
	for t := range b.Config.BaseRates {
		seen[t] = 0
	}
	tiers := sortedTiers(seen)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i] > tiers[j] })
	return tiers
}

func baseRate(b *Banner, reg RarityRateRegistry, t Tier) uint32 {
	if r, ok := b.Config.BaseRates[t]; ok {
		return r
	}
	return reg.Rate(t)
}

// Rates computes the effective rate table, rarest tier first.
func Rates(b *Banner, reg RarityRateRegistry, state PityState) ([]TierRate, error) {
	tiers := TrackedTiers(b, reg)
	out := make([]TierRate, 0, len(tiers))
	for _, t := range tiers {
		base := baseRate(b, reg, t)
		if base > MaxBps {
			return nil, fmt.Errorf("%w: tier %d base %d", ErrRateMisconfigured, t, base)
		}
		tp := b.Config.Pity.ForTier(t)
		pity := state.Get(t)
		out = append(out, TierRate{
			Tier:       t,
			Base:       base,
			Effective:  EffectiveRate(base, pity, tp),
			Pity:       pity,
			Guaranteed: HardPityReached(pity, tp),
		})
	}
	return out, nil
}

// Draw performs one draw on an active banner.
func (e *Engine) Draw(b *Banner, reg RarityRateRegistry, state PityState, now int64) (Outcome, error) {
	if !b.IsActive(now) {
		return Outcome{}, fmt.Errorf("%w: %s", ErrBannerInactive, b.ID)
	}
	return e.draw(b, reg, state)
}

// DrawN performs n sequential draws, each seeing the pity state left by the previous one.
// Either every draw succeeds or none of the outcomes is returned.
func (e *Engine) DrawN(b *Banner, reg RarityRateRegistry, state PityState, now int64, n int) ([]Outcome, PityState, error) {
	if n < 1 || n > MaxDrawsPerCall {
		return nil, state, fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidDrawCount, n, MaxDrawsPerCall)
	}
	if !b.IsActive(now) {
		return nil, state, fmt.Errorf("%w: %s", ErrBannerInactive, b.ID)
	}
	outcomes := make([]Outcome, 0, n)
	cur := state
	for i := 0; i < n; i++ {
		out, err := e.draw(b, reg, cur)
		if err != nil {
			return nil, state, err
		}
		outcomes = append(outcomes, out)
		cur = out.PityAfter
	}
	return outcomes, cur, nil
}

// draw walks tiers rarest first, accumulating effective mass; the first tier whose
// accumulated mass exceeds the roll wins. Rates summing above 10000 therefore give
// rarer tiers first claim. A tier at hard pity absorbs all remaining mass, so among
// several guaranteed tiers the highest one is selected.
func (e *Engine) draw(b *Banner, reg RarityRateRegistry, state PityState) (Outcome, error) {
	rates, err := Rates(b, reg, state)
	if err != nil {
		return Outcome{}, err
	}
	if len(rates) == 0 {
		return Outcome{}, fmt.Errorf("%w: %s", ErrNoTrackedTiers, b.ID)
	}

	roll := e.entropy.Uint64N(uint64(MaxBps))

	var (
		acc      uint64
		selected TierRate
		found    bool
	)
	for _, r := range rates {
		acc += uint64(r.Effective)
		if acc > roll {
			selected, found = r, true
			break
		}
	}

	tier := selected.Tier
	if !found {
		tier = fallbackTier(b, rates)
	}

	pool := b.PoolForTier(tier)
	if len(pool) == 0 {
		return Outcome{}, fmt.Errorf("%w: banner %s tier %d",
			ErrEmptyTierPool.WithMetadata("banner", b.ID, "tier", strconv.Itoa(int(tier))), b.ID, tier)
	}
	item := e.pickItem(b, pool)

	tracked := make([]Tier, len(rates))
	for i, r := range rates {
		tracked[i] = r.Tier
	}

	return Outcome{
		Tier:        tier,
		Item:        item,
		Roll:        roll,
		Rates:       rates,
		Guaranteed:  found && selected.Guaranteed,
		FellThrough: !found,
		PityBefore:  state.Clone(),
		PityAfter:   state.Apply(tier, tracked),
	}, nil
}

// fallbackTier is the banner's designated default tier, else the lowest tracked tier.
func fallbackTier(b *Banner, rates []TierRate) Tier {
	if b.Config.DefaultTier != nil {
		return *b.Config.DefaultTier
	}
	return rates[len(rates)-1].Tier
}

// pickItem selects a pool member weighted by featured boost; unboosted members weigh 10000.
// pool must be sorted so the same roll always maps to the same item.
func (e *Engine) pickItem(b *Banner, pool []string) string {
	if len(pool) == 1 {
		return pool[0]
	}
	cumul := make([]uint64, len(pool))
	var total uint64
	for i, item := range pool {
		total += uint64(b.Boost(item))
		cumul[i] = total
	}
	roll := e.entropy.Uint64N(total)
	idx := sort.Search(len(cumul), func(i int) bool { return cumul[i] > roll })
	return pool[idx]
}
