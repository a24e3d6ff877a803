package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/xtding233/banner-gacha/internal/catalog"
	"github.com/xtding233/banner-gacha/internal/concurrency"
	"github.com/xtding233/banner-gacha/internal/gacha"
	"github.com/xtding233/banner-gacha/internal/metrics"
	"github.com/xtding233/banner-gacha/internal/store"
)

// ApplyReport lists what a catalog application changed.
type ApplyReport struct {
	Created []string `json:"created"`
	Updated []string `json:"updated"`
}

// ApplyCatalog installs a loaded catalog: tier limits, fallback rates and every banner it
// defines, in one store write. Banners already stored are replaced by the file version;
// banners absent from the catalog are left alone. Seeded banners get no capability; one
// is minted on demand.
func (s *Service) ApplyCatalog(ctx context.Context, cat *catalog.Catalog) (ApplyReport, error) {
	report, err := s.applyCatalog(ctx, cat)
	result := metrics.ResultOK
	if err != nil {
		result = metrics.ResultError
	}
	metrics.CatalogReloads.WithLabelValues(result).Inc()
	return report, err
}

func (s *Service) applyCatalog(ctx context.Context, cat *catalog.Catalog) (ApplyReport, error) {
	keys := []string{concurrency.SystemKey()}
	for _, b := range cat.Banners {
		keys = append(keys, concurrency.BannerKey(b.ID))
	}
	unlock := s.locks.Lock(keys...)
	defer unlock()

	sys, err := s.system(ctx)
	if err != nil {
		return ApplyReport{}, err
	}

	next := sys.Clone()
	next.Limits = cat.Limits
	next.Fallback = cat.Fallback.Clone()

	var (
		report           ApplyReport
		creates, updates []*gacha.Banner
	)
	for _, b := range cat.Banners {
		nb := b.Clone()
		existing, err := s.store.GetBanner(ctx, nb.ID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			creates = append(creates, nb)
			report.Created = append(report.Created, nb.ID)
		case err != nil:
			return ApplyReport{}, err
		default:
			nb.Version = existing.Version + 1
			updates = append(updates, nb)
			report.Updated = append(report.Updated, nb.ID)
		}
	}
	if err := s.store.ApplyCatalog(ctx, next, creates, updates); err != nil {
		return ApplyReport{}, fmt.Errorf("apply catalog: %w", err)
	}
	s.log(ctx).Info("Catalog applied", "version", cat.Version,
		"created", len(report.Created), "updated", len(report.Updated))
	return report, nil
}
