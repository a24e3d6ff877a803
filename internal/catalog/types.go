package catalog

import "github.com/xtding233/banner-gacha/internal/gacha"

// RawDefaults is defaults.yaml: deployment-wide settings and banner defaults.
type RawDefaults struct {
	Version       string                `yaml:"version"`
	Rarity        *gacha.RarityLimits   `yaml:"rarity,omitempty"`
	FallbackRates map[gacha.Tier]uint32 `yaml:"fallback_rates,omitempty"`
	Banner        RawBanner             `yaml:"banner"`
	Notes         string                `yaml:"notes,omitempty"`
}

// RawBanner is one file under banners/. Pointer fields distinguish "unset" from zero so
// defaults can fill them in.
type RawBanner struct {
	ID          string                 `yaml:"id"`
	Name        string                 `yaml:"name"`
	Description string                 `yaml:"description,omitempty"`
	Start       *int64                 `yaml:"start,omitempty"` // unix seconds
	End         *int64                 `yaml:"end,omitempty"`   // unix seconds, 0 = unbounded
	Active      *bool                  `yaml:"active,omitempty"`
	Rates       map[gacha.Tier]uint32  `yaml:"rates,omitempty"`
	Pity        map[gacha.Tier]RawPity `yaml:"pity,omitempty"`
	DefaultTier *gacha.Tier            `yaml:"default_tier,omitempty"`
	Items       []RawItem              `yaml:"items,omitempty"`
}

type RawPity struct {
	Hard         *uint32 `yaml:"hard,omitempty"`
	SoftStart    *uint32 `yaml:"soft_start,omitempty"`
	SoftIncrease *uint32 `yaml:"soft_increase,omitempty"` // bps per draw past soft_start
}

type RawItem struct {
	ID    string     `yaml:"id"`
	Tier  gacha.Tier `yaml:"tier"`
	Boost *uint32    `yaml:"boost,omitempty"` // intra-tier weight, 10000 = 1x
}

// Catalog is the validated, merged result of a config directory.
type Catalog struct {
	Version  string
	Limits   gacha.RarityLimits
	Fallback gacha.RarityRateRegistry
	Banners  []*gacha.Banner
}
