package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/xtding233/banner-gacha/internal/admin"
	"github.com/xtding233/banner-gacha/internal/concurrency"
	"github.com/xtding233/banner-gacha/internal/gacha"
)

// BannerSpec describes a banner to create.
type BannerSpec struct {
	ID          string
	Name        string
	Description string
	StartTime   int64
	EndTime     int64
}

// CreateBanner creates a banner and mints a capability scoped to it. A blank id is
// replaced with a generated one.
func (s *Service) CreateBanner(ctx context.Context, c admin.Cap, spec BannerSpec) (*gacha.Banner, admin.Cap, error) {
	if _, err := s.system(ctx); err != nil {
		return nil, admin.Cap{}, err
	}
	id := spec.ID
	if id == "" {
		id = uuid.NewString()
	}

	unlock := s.locks.Lock(concurrency.RegistryKey(), concurrency.BannerKey(id))
	defer unlock()

	reg, err := s.authorizeRegistry(ctx, c)
	if err != nil {
		return nil, admin.Cap{}, err
	}
	b, err := gacha.NewBanner(id, spec.Name, spec.Description, spec.StartTime, spec.EndTime)
	if err != nil {
		return nil, admin.Cap{}, err
	}
	next := reg.Clone()
	bannerCap, err := next.Mint(c, id, s.now())
	if err != nil {
		return nil, admin.Cap{}, err
	}
	if err := s.store.CreateBanner(ctx, b, next); err != nil {
		return nil, admin.Cap{}, err
	}
	s.log(ctx).Info("Banner created", "banner", id, "cap", bannerCap.ID)
	return b, bannerCap, nil
}

func (s *Service) GetBanner(ctx context.Context, id string) (*gacha.Banner, error) {
	if _, err := s.system(ctx); err != nil {
		return nil, err
	}
	return s.store.GetBanner(ctx, id)
}

func (s *Service) ListBanners(ctx context.Context) ([]*gacha.Banner, error) {
	if _, err := s.system(ctx); err != nil {
		return nil, err
	}
	return s.store.ListBanners(ctx)
}

// mutateBanner runs fn against a copy of the banner under the banner lock and persists
// the copy when fn changed it. c must be scoped to the banner.
func (s *Service) mutateBanner(ctx context.Context, c admin.Cap, id, op string, fn func(b *gacha.Banner, limits gacha.RarityLimits) error) (*gacha.Banner, error) {
	sys, err := s.system(ctx)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(concurrency.BannerKey(id))
	defer unlock()

	reg, err := s.store.GetRegistry(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, reg, c, id); err != nil {
		return nil, err
	}
	b, err := s.store.GetBanner(ctx, id)
	if err != nil {
		return nil, err
	}
	before := b.Version
	if err := fn(b, sys.Limits); err != nil {
		return nil, err
	}
	if b.Version == before {
		return b, nil
	}
	if err := s.store.SaveBanner(ctx, b); err != nil {
		return nil, fmt.Errorf("save banner %s: %w", id, err)
	}
	s.log(ctx).Info("Banner updated", "banner", id, "op", op, "version", b.Version)
	return b, nil
}

func (s *Service) UpdateBannerInfo(ctx context.Context, c admin.Cap, id, name, description string) (*gacha.Banner, error) {
	return s.mutateBanner(ctx, c, id, "update_info", func(b *gacha.Banner, _ gacha.RarityLimits) error {
		return b.SetInfo(name, description)
	})
}

func (s *Service) SetBannerWindow(ctx context.Context, c admin.Cap, id string, start, end int64) (*gacha.Banner, error) {
	return s.mutateBanner(ctx, c, id, "set_window", func(b *gacha.Banner, _ gacha.RarityLimits) error {
		return b.SetTimeWindow(start, end)
	})
}

func (s *Service) SetBannerActive(ctx context.Context, c admin.Cap, id string, active bool) (*gacha.Banner, error) {
	return s.mutateBanner(ctx, c, id, "set_active", func(b *gacha.Banner, _ gacha.RarityLimits) error {
		b.SetActive(active)
		return nil
	})
}

func (s *Service) AddPoolItem(ctx context.Context, c admin.Cap, id, item string, tier gacha.Tier) (*gacha.Banner, error) {
	return s.mutateBanner(ctx, c, id, "add_item", func(b *gacha.Banner, limits gacha.RarityLimits) error {
		_, err := b.AddItem(limits, item, tier)
		return err
	})
}

func (s *Service) RemovePoolItem(ctx context.Context, c admin.Cap, id, item string) (*gacha.Banner, error) {
	return s.mutateBanner(ctx, c, id, "remove_item", func(b *gacha.Banner, _ gacha.RarityLimits) error {
		b.RemoveItem(item)
		return nil
	})
}

func (s *Service) SetBaseRate(ctx context.Context, c admin.Cap, id string, tier gacha.Tier, bps uint32) (*gacha.Banner, error) {
	return s.mutateBanner(ctx, c, id, "set_base_rate", func(b *gacha.Banner, limits gacha.RarityLimits) error {
		return b.SetBaseRate(limits, tier, bps)
	})
}

func (s *Service) ClearBaseRate(ctx context.Context, c admin.Cap, id string, tier gacha.Tier) (*gacha.Banner, error) {
	return s.mutateBanner(ctx, c, id, "clear_base_rate", func(b *gacha.Banner, _ gacha.RarityLimits) error {
		b.ClearBaseRate(tier)
		return nil
	})
}

func (s *Service) ConfigureFeaturedBoost(ctx context.Context, c admin.Cap, id, item string, multiplier uint32) (*gacha.Banner, error) {
	return s.mutateBanner(ctx, c, id, "configure_boost", func(b *gacha.Banner, _ gacha.RarityLimits) error {
		return b.ConfigureFeaturedBoost(item, multiplier)
	})
}

func (s *Service) ClearFeaturedBoost(ctx context.Context, c admin.Cap, id, item string) (*gacha.Banner, error) {
	return s.mutateBanner(ctx, c, id, "clear_boost", func(b *gacha.Banner, _ gacha.RarityLimits) error {
		b.ClearFeaturedBoost(item)
		return nil
	})
}

func (s *Service) SetHardPity(ctx context.Context, c admin.Cap, id string, tier gacha.Tier, draws uint32) (*gacha.Banner, error) {
	return s.mutateBanner(ctx, c, id, "set_hard_pity", func(b *gacha.Banner, limits gacha.RarityLimits) error {
		return b.SetHardPity(limits, tier, draws)
	})
}

func (s *Service) SetSoftPityStart(ctx context.Context, c admin.Cap, id string, tier gacha.Tier, draws uint32) (*gacha.Banner, error) {
	return s.mutateBanner(ctx, c, id, "set_soft_pity_start", func(b *gacha.Banner, limits gacha.RarityLimits) error {
		return b.SetSoftPityStart(limits, tier, draws)
	})
}

func (s *Service) SetSoftPityIncrease(ctx context.Context, c admin.Cap, id string, tier gacha.Tier, bps uint32) (*gacha.Banner, error) {
	return s.mutateBanner(ctx, c, id, "set_soft_pity_increase", func(b *gacha.Banner, limits gacha.RarityLimits) error {
		return b.SetSoftPityIncrease(limits, tier, bps)
	})
}

// ConfigurePity applies several pity fields of one tier as a single validated change.
func (s *Service) ConfigurePity(ctx context.Context, c admin.Cap, id string, tier gacha.Tier, u gacha.PityUpdate) (*gacha.Banner, error) {
	return s.mutateBanner(ctx, c, id, "configure_pity", func(b *gacha.Banner, limits gacha.RarityLimits) error {
		return b.ConfigurePity(limits, tier, u)
	})
}

func (s *Service) ClearPity(ctx context.Context, c admin.Cap, id string, tier gacha.Tier) (*gacha.Banner, error) {
	return s.mutateBanner(ctx, c, id, "clear_pity", func(b *gacha.Banner, _ gacha.RarityLimits) error {
		b.ClearPity(tier)
		return nil
	})
}

func (s *Service) SetDefaultTier(ctx context.Context, c admin.Cap, id string, tier gacha.Tier) (*gacha.Banner, error) {
	return s.mutateBanner(ctx, c, id, "set_default_tier", func(b *gacha.Banner, limits gacha.RarityLimits) error {
		return b.SetDefaultTier(limits, tier)
	})
}

// bannerAndRates loads a banner with the fallback registry it draws against.
func (s *Service) bannerAndRates(ctx context.Context, id string) (*gacha.Banner, gacha.RarityRateRegistry, error) {
	sys, err := s.system(ctx)
	if err != nil {
		return nil, gacha.RarityRateRegistry{}, err
	}
	b, err := s.store.GetBanner(ctx, id)
	if err != nil {
		return nil, gacha.RarityRateRegistry{}, err
	}
	return b, sys.Fallback, nil
}
