package gacha

import (
	"fmt"
	"sort"

	"github.com/xtding233/banner-gacha/internal/apperr"
)

// Tier identifies a rarity class. Higher is rarer by convention only.
type Tier uint8

var (
	ErrTierOutOfRange     = apperr.New(apperr.CodeTierOutOfRange, "tier out of range")
	ErrInvalidRarityRange = apperr.New(apperr.CodeInvalidRarityRange, "invalid rarity range")
)

// RarityLimits bounds the valid tier identifiers to [Min, Max].
type RarityLimits struct {
	Min Tier `json:"min" yaml:"min"`
	Max Tier `json:"max" yaml:"max"`
}

// DefaultRarityLimits covers tiers 1 through 6.
func DefaultRarityLimits() RarityLimits {
	return RarityLimits{Min: 1, Max: 6}
}

// NewRarityLimits validates min <= max.
func NewRarityLimits(min, max Tier) (RarityLimits, error) {
	if min > max {
		return RarityLimits{}, fmt.Errorf("%w: min %d > max %d", ErrInvalidRarityRange, min, max)
	}
	return RarityLimits{Min: min, Max: max}, nil
}

// IsValid reports whether t lies in [Min, Max].
func (l RarityLimits) IsValid(t Tier) bool {
	return t >= l.Min && t <= l.Max
}

// Validate returns ErrTierOutOfRange for tiers outside the limits.
func (l RarityLimits) Validate(t Tier) error {
	if !l.IsValid(t) {
		return fmt.Errorf("%w: tier %d not in [%d, %d]", ErrTierOutOfRange, t, l.Min, l.Max)
	}
	return nil
}

// RarityRateRegistry holds global fallback base rates used when a banner
// does not configure a rate for a tier.
type RarityRateRegistry struct {
	Rates map[Tier]uint32 `json:"rates,omitempty" yaml:"rates,omitempty"`
}

// Rate returns the fallback rate for t, or 0 when unconfigured.
func (r RarityRateRegistry) Rate(t Tier) uint32 {
	return r.Rates[t]
}

func (r RarityRateRegistry) Has(t Tier) bool {
	_, ok := r.Rates[t]
	return ok
}

// SetRate stores a fallback rate after checking the tier and bps bounds.
func (r *RarityRateRegistry) SetRate(limits RarityLimits, t Tier, bps uint32) error {
	if err := limits.Validate(t); err != nil {
		return err
	}
	if err := validateBps(bps); err != nil {
		return err
	}
	if r.Rates == nil {
		r.Rates = make(map[Tier]uint32)
	}
	r.Rates[t] = bps
	return nil
}

// ClearRate removes the fallback for t. Clearing an absent tier is a no-op.
func (r *RarityRateRegistry) ClearRate(t Tier) {
	delete(r.Rates, t)
}

// Tiers returns configured tiers in ascending order.
func (r RarityRateRegistry) Tiers() []Tier {
	return sortedTiers(r.Rates)
}

func (r RarityRateRegistry) Clone() RarityRateRegistry {
	return RarityRateRegistry{Rates: cloneTierMap(r.Rates)}
}

func sortedTiers(m map[Tier]uint32) []Tier {
	out := make([]Tier, 0, len(m))
	for t := range m {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func cloneTierMap(m map[Tier]uint32) map[Tier]uint32 {
	if m == nil {
		return nil
	}
	out := make(map[Tier]uint32, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
