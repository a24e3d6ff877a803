package catalog

import (
	"fmt"
	"strings"

	"github.com/xtding233/banner-gacha/internal/apperr"
	"github.com/xtding233/banner-gacha/internal/gacha"
)

// ErrInvalidCatalog wraps every problem found in a config directory.
var ErrInvalidCatalog = apperr.New(apperr.CodeInvalidInput, "catalog validation failed")

// ValidateRaw checks cross-file constraints and collects every problem before failing.
// Per-field rules (tier range, bps bounds, pity ordering) are enforced again by the
// gacha mutators when the catalog is built.
func ValidateRaw(defs RawDefaults, banners []RawBanner) error {
	var errs []string

	limits := gacha.DefaultRarityLimits()
	if defs.Rarity != nil {
		if defs.Rarity.Min > defs.Rarity.Max {
			errs = append(errs, "rarity.min must be <= rarity.max")
		} else {
			limits = *defs.Rarity
		}
	}
	for t, bps := range defs.FallbackRates {
		if !limits.IsValid(t) {
			errs = append(errs, fmt.Sprintf("fallback_rates[%d]: tier out of range", t))
		}
		if bps > gacha.MaxBps {
			errs = append(errs, fmt.Sprintf("fallback_rates[%d] must be <= %d", t, gacha.MaxBps))
		}
	}

	seen := make(map[string]bool, len(banners))
	for _, b := range banners {
		prefix := "banner " + b.ID
		if seen[b.ID] {
			errs = append(errs, prefix+": duplicate id")
		}
		seen[b.ID] = true
		if strings.TrimSpace(b.Name) == "" {
			errs = append(errs, prefix+": name is required")
		}
		if b.Start != nil && b.End != nil && *b.End != 0 && *b.End <= *b.Start {
			errs = append(errs, prefix+": end must be after start")
		}
		for t, bps := range b.Rates {
			if bps > gacha.MaxBps {
				errs = append(errs, fmt.Sprintf("%s: rates[%d] must be <= %d", prefix, t, gacha.MaxBps))
			}
		}
		for t, p := range b.Pity {
			if p.Hard != nil && p.SoftStart != nil && *p.SoftStart >= *p.Hard {
				errs = append(errs, fmt.Sprintf("%s: pity[%d].soft_start must be < hard", prefix, t))
			}
		}
		items := make(map[string]bool, len(b.Items))
		for i, it := range b.Items {
			if it.ID == "" {
				errs = append(errs, fmt.Sprintf("%s: items[%d].id is required", prefix, i))
				continue
			}
			if items[it.ID] {
				errs = append(errs, fmt.Sprintf("%s: item %s listed twice", prefix, it.ID))
			}
			items[it.ID] = true
			if !limits.IsValid(it.Tier) {
				errs = append(errs, fmt.Sprintf("%s: item %s tier %d out of range", prefix, it.ID, it.Tier))
			}
			if it.Boost != nil && *it.Boost == 0 {
				errs = append(errs, fmt.Sprintf("%s: item %s boost must be > 0", prefix, it.ID))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidCatalog, strings.Join(errs, "; "))
	}
	return nil
}

// build turns merged raw files into banners through the same mutators the service uses.
func build(defs RawDefaults, raws []RawBanner) (*Catalog, error) {
	cat := &Catalog{Version: defs.Version, Limits: gacha.DefaultRarityLimits()}
	if defs.Rarity != nil {
		limits, err := gacha.NewRarityLimits(defs.Rarity.Min, defs.Rarity.Max)
		if err != nil {
			return nil, err
		}
		cat.Limits = limits
	}
	for t, bps := range defs.FallbackRates {
		if err := cat.Fallback.SetRate(cat.Limits, t, bps); err != nil {
			return nil, fmt.Errorf("fallback rate: %w", err)
		}
	}

	for _, rb := range raws {
		b, err := buildBanner(cat.Limits, rb)
		if err != nil {
			return nil, fmt.Errorf("banner %s: %w", rb.ID, err)
		}
		cat.Banners = append(cat.Banners, b)
	}
	return cat, nil
}

func buildBanner(limits gacha.RarityLimits, rb RawBanner) (*gacha.Banner, error) {
	var start, end int64
	if rb.Start != nil {
		start = *rb.Start
	}
	if rb.End != nil {
		end = *rb.End
	}
	b, err := gacha.NewBanner(rb.ID, rb.Name, rb.Description, start, end)
	if err != nil {
		return nil, err
	}
	if rb.Active != nil {
		b.SetActive(*rb.Active)
	}
	for t, bps := range rb.Rates {
		if err := b.SetBaseRate(limits, t, bps); err != nil {
			return nil, err
		}
	}
	for t, p := range rb.Pity {
		// hard pity first so a soft start is checked against it
		if p.Hard != nil {
			if err := b.SetHardPity(limits, t, *p.Hard); err != nil {
				return nil, err
			}
		}
		if p.SoftStart != nil {
			if err := b.SetSoftPityStart(limits, t, *p.SoftStart); err != nil {
				return nil, err
			}
		}
		if p.SoftIncrease != nil {
			if err := b.SetSoftPityIncrease(limits, t, *p.SoftIncrease); err != nil {
				return nil, err
			}
		}
	}
	if rb.DefaultTier != nil {
		if err := b.SetDefaultTier(limits, *rb.DefaultTier); err != nil {
			return nil, err
		}
	}
	for _, it := range rb.Items {
		if _, err := b.AddItem(limits, it.ID, it.Tier); err != nil {
			return nil, err
		}
		if it.Boost != nil {
			if err := b.ConfigureFeaturedBoost(it.ID, *it.Boost); err != nil {
				return nil, err
			}
		}
	}
	return b, nil
}
