package gacha

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xtding233/banner-gacha/internal/apperr"
)

var (
	ErrItemNotInPool     = apperr.New(apperr.CodeItemNotInPool, "item not in pool")
	ErrInvalidBoost      = apperr.New(apperr.CodeInvalidBoost, "invalid featured boost")
	ErrInvalidPityConfig = apperr.New(apperr.CodeInvalidPityConfig, "invalid pity config")
)

// PityConfig holds per-tier pity thresholds for one banner. A tier key that is absent
// means the mechanism is not configured for that tier.
type PityConfig struct {
	HardPity         map[Tier]uint32 `json:"hard_pity,omitempty"`
	SoftPityStart    map[Tier]uint32 `json:"soft_pity_start,omitempty"`
	SoftPityIncrease map[Tier]uint32 `json:"soft_pity_increase,omitempty"` // bps added per draw past start
}

// TierPity is the resolved pity configuration of a single tier.
type TierPity struct {
	HardPity     uint32
	HasHardPity  bool
	SoftStart    uint32
	HasSoftStart bool
	SoftIncrease uint32
}

// ForTier resolves the configuration for t.
func (c PityConfig) ForTier(t Tier) TierPity {
	var tp TierPity
	tp.HardPity, tp.HasHardPity = c.HardPity[t]
	tp.SoftStart, tp.HasSoftStart = c.SoftPityStart[t]
	tp.SoftIncrease = c.SoftPityIncrease[t]
	return tp
}

// validate rejects a hard pity of zero (the tier would always be certain) and a soft
// start at or past hard pity (the ramp could never apply).
func (tp TierPity) validate(t Tier) error {
	if tp.HasHardPity && tp.HardPity == 0 {
		return fmt.Errorf("%w: tier %d hard pity must be >= 1", ErrInvalidPityConfig, t)
	}
	if tp.HasHardPity && tp.HasSoftStart && tp.SoftStart >= tp.HardPity {
		return fmt.Errorf("%w: tier %d soft pity start %d must be below hard pity %d",
			ErrInvalidPityConfig, t, tp.SoftStart, tp.HardPity)
	}
	return nil
}

// BannerConfig is owned exclusively by one Banner.
type BannerConfig struct {
	BaseRates      map[Tier]uint32   `json:"base_rates,omitempty"`
	FeaturedBoosts map[string]uint32 `json:"featured_boosts,omitempty"` // item -> weight in bps, 10000 = 1x
	Pity           PityConfig        `json:"pity"`
	// DefaultTier receives the draw when no tier claims the roll. Nil means the lowest tracked tier.
	DefaultTier *Tier `json:"default_tier,omitempty"`
}

// Banner is a curated, time-scoped draw target. Banners are never deleted.
type Banner struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	StartTime   int64        `json:"start_time"` // unix seconds
	EndTime     int64        `json:"end_time"`   // unix seconds, 0 = unbounded
	Active      bool         `json:"active"`
	Config      BannerConfig `json:"config"`
	// Pool maps each eligible item to the tier it is awarded under.
	Pool    map[string]Tier `json:"pool,omitempty"`
	Version uint64          `json:"version"`
}

// NewBanner validates the activity window and returns an active banner with empty config.
func NewBanner(id, name, description string, start, end int64) (*Banner, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: banner id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: banner name is required", ErrInvalidInput)
	}
	if err := validateWindow(start, end); err != nil {
		return nil, err
	}
	return &Banner{
		ID:          id,
		Name:        name,
		Description: description,
		StartTime:   start,
		EndTime:     end,
		Active:      true,
		Pool:        make(map[string]Tier),
		Version:     1,
	}, nil
}

func (b *Banner) touch() { b.Version++ }

// IsActive reports active && now >= start && (end == 0 || now <= end).
func (b *Banner) IsActive(now int64) bool {
	return b.Active && now >= b.StartTime && (b.EndTime == 0 || now <= b.EndTime)
}

func (b *Banner) SetInfo(name, description string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: banner name is required", ErrInvalidInput)
	}
	b.Name = name
	b.Description = description
	b.touch()
	return nil
}

func (b *Banner) SetTimeWindow(start, end int64) error {
	if err := validateWindow(start, end); err != nil {
		return err
	}
	b.StartTime, b.EndTime = start, end
	b.touch()
	return nil
}

func (b *Banner) SetActive(active bool) {
	if b.Active == active {
		return
	}
	b.Active = active
	b.touch()
}

// AddItem puts item in the pool under tier. Adding an existing member is a no-op and
// keeps its original tier; the return value reports whether the pool changed.
func (b *Banner) AddItem(limits RarityLimits, item string, tier Tier) (bool, error) {
	if strings.TrimSpace(item) == "" {
		return false, fmt.Errorf("%w: item id is required", ErrInvalidInput)
	}
	if err := limits.Validate(tier); err != nil {
		return false, err
	}
	if _, ok := b.Pool[item]; ok {
		return false, nil
	}
	if b.Pool == nil {
		b.Pool = make(map[string]Tier)
	}
	b.Pool[item] = tier
	b.touch()
	return true, nil
}

// RemoveItem drops item and its featured boost. Removing an absent item is a no-op.
func (b *Banner) RemoveItem(item string) bool {
	if _, ok := b.Pool[item]; !ok {
		return false
	}
	delete(b.Pool, item)
	delete(b.Config.FeaturedBoosts, item)
	b.touch()
	return true
}

func (b *Banner) HasItem(item string) bool {
	_, ok := b.Pool[item]
	return ok
}

// PoolForTier returns the pool members awarded under tier, sorted by id.
func (b *Banner) PoolForTier(tier Tier) []string {
	var out []string
	for item, t := range b.Pool {
		if t == tier {
			out = append(out, item)
		}
	}
	sort.Strings(out)
	return out
}

func (b *Banner) SetBaseRate(limits RarityLimits, tier Tier, bps uint32) error {
	if err := limits.Validate(tier); err != nil {
		return err
	}
	if err := validateBps(bps); err != nil {
		return err
	}
	if b.Config.BaseRates == nil {
		b.Config.BaseRates = make(map[Tier]uint32)
	}
	b.Config.BaseRates[tier] = bps
	b.touch()
	return nil
}

func (b *Banner) ClearBaseRate(tier Tier) {
	if _, ok := b.Config.BaseRates[tier]; !ok {
		return
	}
	delete(b.Config.BaseRates, tier)
	b.touch()
}

// ConfigureFeaturedBoost sets the intra-tier weight of a pool member.
func (b *Banner) ConfigureFeaturedBoost(item string, multiplier uint32) error {
	if !b.HasItem(item) {
		return fmt.Errorf("%w: %s", ErrItemNotInPool, item)
	}
	if multiplier == 0 {
		return fmt.Errorf("%w: multiplier must be > 0", ErrInvalidBoost)
	}
	if b.Config.FeaturedBoosts == nil {
		b.Config.FeaturedBoosts = make(map[string]uint32)
	}
	b.Config.FeaturedBoosts[item] = multiplier
	b.touch()
	return nil
}

func (b *Banner) ClearFeaturedBoost(item string) {
	if _, ok := b.Config.FeaturedBoosts[item]; !ok {
		return
	}
	delete(b.Config.FeaturedBoosts, item)
	b.touch()
}

// Boost returns the item's selection weight, DefaultBoost when unboosted.
func (b *Banner) Boost(item string) uint32 {
	if m, ok := b.Config.FeaturedBoosts[item]; ok {
		return m
	}
	return DefaultBoost
}

func (b *Banner) SetHardPity(limits RarityLimits, tier Tier, draws uint32) error {
	if err := limits.Validate(tier); err != nil {
		return err
	}
	next := b.Config.Pity.ForTier(tier)
	next.HardPity, next.HasHardPity = draws, true
	if err := next.validate(tier); err != nil {
		return err
	}
	b.Config.Pity.HardPity = setTier(b.Config.Pity.HardPity, tier, draws)
	b.touch()
	return nil
}

func (b *Banner) SetSoftPityStart(limits RarityLimits, tier Tier, draws uint32) error {
	if err := limits.Validate(tier); err != nil {
		return err
	}
	next := b.Config.Pity.ForTier(tier)
	next.SoftStart, next.HasSoftStart = draws, true
	if err := next.validate(tier); err != nil {
		return err
	}
	b.Config.Pity.SoftPityStart = setTier(b.Config.Pity.SoftPityStart, tier, draws)
	b.touch()
	return nil
}

func (b *Banner) SetSoftPityIncrease(limits RarityLimits, tier Tier, bps uint32) error {
	if err := limits.Validate(tier); err != nil {
		return err
	}
	if err := validateBps(bps); err != nil {
		return err
	}
	b.Config.Pity.SoftPityIncrease = setTier(b.Config.Pity.SoftPityIncrease, tier, bps)
	b.touch()
	return nil
}

// PityUpdate sets any subset of a tier's pity fields in one step. Nil fields keep their
// current value.
type PityUpdate struct {
	HardPity     *uint32 `json:"hard_pity,omitempty"`
	SoftStart    *uint32 `json:"soft_pity_start,omitempty"`
	SoftIncrease *uint32 `json:"soft_pity_increase,omitempty"`
}

// ConfigurePity applies u and validates the combined result, so hard pity and soft start
// can move past each other in a single update.
func (b *Banner) ConfigurePity(limits RarityLimits, tier Tier, u PityUpdate) error {
	if err := limits.Validate(tier); err != nil {
		return err
	}
	next := b.Config.Pity.ForTier(tier)
	if u.HardPity != nil {
		next.HardPity, next.HasHardPity = *u.HardPity, true
	}
	if u.SoftStart != nil {
		next.SoftStart, next.HasSoftStart = *u.SoftStart, true
	}
	if u.SoftIncrease != nil {
		if err := validateBps(*u.SoftIncrease); err != nil {
			return err
		}
		next.SoftIncrease = *u.SoftIncrease
	}
	if err := next.validate(tier); err != nil {
		return err
	}
	if u.HardPity != nil {
		b.Config.Pity.HardPity = setTier(b.Config.Pity.HardPity, tier, next.HardPity)
	}
	if u.SoftStart != nil {
		b.Config.Pity.SoftPityStart = setTier(b.Config.Pity.SoftPityStart, tier, next.SoftStart)
	}
	if u.SoftIncrease != nil {
		b.Config.Pity.SoftPityIncrease = setTier(b.Config.Pity.SoftPityIncrease, tier, next.SoftIncrease)
	}
	b.touch()
	return nil
}

// ClearPity removes every pity setting for tier.
func (b *Banner) ClearPity(tier Tier) {
	delete(b.Config.Pity.HardPity, tier)
	delete(b.Config.Pity.SoftPityStart, tier)
	delete(b.Config.Pity.SoftPityIncrease, tier)
	b.touch()
}

func (b *Banner) SetDefaultTier(limits RarityLimits, tier Tier) error {
	if err := limits.Validate(tier); err != nil {
		return err
	}
	t := tier
	b.Config.DefaultTier = &t
	b.touch()
	return nil
}

// Clone returns a deep copy so callers can mutate without touching stored state.
func (b *Banner) Clone() *Banner {
	if b == nil {
		return nil
	}
	out := *b
	out.Pool = make(map[string]Tier, len(b.Pool))
	for k, v := range b.Pool {
		out.Pool[k] = v
	}
	out.Config.BaseRates = cloneTierMap(b.Config.BaseRates)
	if b.Config.FeaturedBoosts != nil {
		out.Config.FeaturedBoosts = make(map[string]uint32, len(b.Config.FeaturedBoosts))
		for k, v := range b.Config.FeaturedBoosts {
			out.Config.FeaturedBoosts[k] = v
		}
	}
	out.Config.Pity = PityConfig{
		HardPity:         cloneTierMap(b.Config.Pity.HardPity),
		SoftPityStart:    cloneTierMap(b.Config.Pity.SoftPityStart),
		SoftPityIncrease: cloneTierMap(b.Config.Pity.SoftPityIncrease),
	}
	if b.Config.DefaultTier != nil {
		t := *b.Config.DefaultTier
		out.Config.DefaultTier = &t
	}
	return &out
}

func setTier(m map[Tier]uint32, t Tier, v uint32) map[Tier]uint32 {
	if m == nil {
		m = make(map[Tier]uint32)
	}
	m[t] = v
	return m
}
