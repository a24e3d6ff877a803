package service

import (
	"context"
	"fmt"

	"github.com/xtding233/banner-gacha/internal/admin"
	"github.com/xtding233/banner-gacha/internal/apperr"
	"github.com/xtding233/banner-gacha/internal/compat"
	"github.com/xtding233/banner-gacha/internal/concurrency"
	"github.com/xtding233/banner-gacha/internal/gacha"
	"github.com/xtding233/banner-gacha/internal/store"
)

var ErrNoWallet = apperr.New(apperr.CodeInvalidInput, "draw currency is not configured")

// mutateRegistry runs fn against a copy of the registry and persists it. c must be
// scoped to the registry.
func (s *Service) mutateRegistry(ctx context.Context, c admin.Cap, fn func(reg *admin.Registry) error) error {
	if _, err := s.system(ctx); err != nil {
		return err
	}

	unlock := s.locks.Lock(concurrency.RegistryKey())
	defer unlock()

	reg, err := s.authorizeRegistry(ctx, c)
	if err != nil {
		return err
	}
	next := reg.Clone()
	if err := fn(next); err != nil {
		return err
	}
	return s.store.SaveRegistry(ctx, next)
}

// MintCap issues a capability bound to forObject.
func (s *Service) MintCap(ctx context.Context, c admin.Cap, forObject string) (admin.Cap, error) {
	var minted admin.Cap
	err := s.mutateRegistry(ctx, c, func(reg *admin.Registry) error {
		var err error
		minted, err = reg.Mint(c, forObject, s.now())
		return err
	})
	if err != nil {
		return admin.Cap{}, err
	}
	s.log(ctx).Info("Capability minted", "cap", minted.ID, "for_object", forObject, "by", c.ID)
	return minted, nil
}

func (s *Service) MarkCapEligible(ctx context.Context, c admin.Cap, capID string) error {
	err := s.mutateRegistry(ctx, c, func(reg *admin.Registry) error {
		return reg.MarkEligible(c, capID)
	})
	if err == nil {
		s.log(ctx).Info("Capability enabled", "cap", capID, "by", c.ID)
	}
	return err
}

func (s *Service) MarkCapNotEligible(ctx context.Context, c admin.Cap, capID string) error {
	err := s.mutateRegistry(ctx, c, func(reg *admin.Registry) error {
		return reg.MarkNotEligible(c, capID)
	})
	if err == nil {
		s.log(ctx).Info("Capability disabled", "cap", capID, "by", c.ID)
	}
	return err
}

// ListCaps returns the audit listing of every issued capability.
func (s *Service) ListCaps(ctx context.Context, c admin.Cap) ([]admin.CapInfo, error) {
	if _, err := s.system(ctx); err != nil {
		return nil, err
	}
	reg, err := s.authorizeRegistry(ctx, c)
	if err != nil {
		return nil, err
	}
	return reg.List(), nil
}

// RegistryID returns the id registry-scoped capabilities are bound to.
func (s *Service) RegistryID(ctx context.Context) (string, error) {
	reg, err := s.store.GetRegistry(ctx)
	if err != nil {
		return "", err
	}
	return reg.ID, nil
}

// mutateSystem runs fn against a copy of the system record and persists it. c must be
// scoped to the registry.
func (s *Service) mutateSystem(ctx context.Context, c admin.Cap, op string, fn func(sys *store.System) error) (store.System, error) {
	unlock := s.locks.Lock(concurrency.SystemKey())
	defer unlock()

	sys, err := s.system(ctx)
	if err != nil {
		return store.System{}, err
	}
	if _, err := s.authorizeRegistry(ctx, c); err != nil {
		return store.System{}, err
	}
	next := sys.Clone()
	if err := fn(&next); err != nil {
		return store.System{}, err
	}
	if err := s.store.SaveSystem(ctx, next); err != nil {
		return store.System{}, err
	}
	s.log(ctx).Info("System settings updated", "op", op)
	return next, nil
}

// SetRarityLimits replaces the tier bounds. Limits that would strand a configured
// fallback rate outside the range are rejected.
func (s *Service) SetRarityLimits(ctx context.Context, c admin.Cap, min, max gacha.Tier) (store.System, error) {
	return s.mutateSystem(ctx, c, "set_rarity_limits", func(sys *store.System) error {
		limits, err := gacha.NewRarityLimits(min, max)
		if err != nil {
			return err
		}
		for _, t := range sys.Fallback.Tiers() {
			if err := limits.Validate(t); err != nil {
				return fmt.Errorf("fallback rate for tier %d: %w", t, err)
			}
		}
		sys.Limits = limits
		return nil
	})
}

func (s *Service) SetFallbackRate(ctx context.Context, c admin.Cap, tier gacha.Tier, bps uint32) (store.System, error) {
	return s.mutateSystem(ctx, c, "set_fallback_rate", func(sys *store.System) error {
		return sys.Fallback.SetRate(sys.Limits, tier, bps)
	})
}

func (s *Service) ClearFallbackRate(ctx context.Context, c admin.Cap, tier gacha.Tier) (store.System, error) {
	return s.mutateSystem(ctx, c, "clear_fallback_rate", func(sys *store.System) error {
		sys.Fallback.ClearRate(tier)
		return nil
	})
}

// System returns the current system record.
func (s *Service) System(ctx context.Context) (store.System, error) {
	return s.system(ctx)
}

// VersionInfo reports the binary version and the stored marker.
type VersionInfo struct {
	Binary uint64 `json:"binary"`
	Marker uint64 `json:"marker"`
}

// Version never fails on a mismatch; it is how callers find out they must upgrade.
func (s *Service) Version(ctx context.Context) (VersionInfo, error) {
	sys, err := s.store.GetSystem(ctx)
	if err != nil {
		return VersionInfo{}, err
	}
	return VersionInfo{Binary: s.binary, Marker: sys.VersionMarker}, nil
}

// Migrate raises the stored version marker to to. It is the one operation that runs
// while the gate is closed.
func (s *Service) Migrate(ctx context.Context, c admin.Cap, to uint64) (VersionInfo, error) {
	unlock := s.locks.Lock(concurrency.SystemKey())
	defer unlock()

	sys, err := s.store.GetSystem(ctx)
	if err != nil {
		return VersionInfo{}, err
	}
	if _, err := s.authorizeRegistry(ctx, c); err != nil {
		return VersionInfo{}, err
	}
	gate, err := compat.NewGate(s.binary, sys.VersionMarker).Migrate(to)
	if err != nil {
		return VersionInfo{}, err
	}
	from := sys.VersionMarker
	sys.VersionMarker = gate.Marker
	if err := s.store.SaveSystem(ctx, sys); err != nil {
		return VersionInfo{}, err
	}
	s.log(ctx).Info("Version marker migrated", "from", from, "to", gate.Marker, "by", c.ID)
	return VersionInfo{Binary: s.binary, Marker: gate.Marker}, nil
}

// Deposit credits a player's wallet. Crediting currency is an administrative act.
func (s *Service) Deposit(ctx context.Context, c admin.Cap, playerID string, amount uint64) (uint64, error) {
	if s.wallet == nil {
		return 0, ErrNoWallet
	}
	if playerID == "" {
		return 0, ErrInvalidPlayer
	}
	if _, err := s.system(ctx); err != nil {
		return 0, err
	}
	if _, err := s.authorizeRegistry(ctx, c); err != nil {
		return 0, err
	}
	if err := s.wallet.Deposit(ctx, playerID, amount); err != nil {
		return 0, err
	}
	s.log(ctx).Info("Currency deposited", "player", playerID, "amount", amount, "by", c.ID)
	return s.wallet.Balance(ctx, playerID)
}

func (s *Service) Balance(ctx context.Context, playerID string) (uint64, error) {
	if s.wallet == nil {
		return 0, ErrNoWallet
	}
	if _, err := s.system(ctx); err != nil {
		return 0, err
	}
	return s.wallet.Balance(ctx, playerID)
}
