package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/xtding233/banner-gacha/internal/admin"
	"github.com/xtding233/banner-gacha/internal/concurrency"
	"github.com/xtding233/banner-gacha/internal/gacha"
	"github.com/xtding233/banner-gacha/internal/metrics"
)

// DrawResult is what a player receives from one draw call.
type DrawResult struct {
	BannerID string          `json:"banner_id"`
	PlayerID string          `json:"player_id"`
	Outcomes []gacha.Outcome `json:"outcomes"`
	// Pity is the player's state after the last outcome.
	Pity gacha.PityState `json:"pity"`
	Cost uint64          `json:"cost"`
}

// Draw performs a single draw for player on banner.
func (s *Service) Draw(ctx context.Context, bannerID, playerID string) (DrawResult, error) {
	return s.DrawMulti(ctx, bannerID, playerID, 1)
}

// DrawMulti performs n sequential draws. The wallet is charged once for the whole batch
// and refunded when the pity update cannot be persisted.
func (s *Service) DrawMulti(ctx context.Context, bannerID, playerID string, n int) (DrawResult, error) {
	if strings.TrimSpace(playerID) == "" {
		return DrawResult{}, ErrInvalidPlayer
	}
	b, fallback, err := s.bannerAndRates(ctx, bannerID)
	if err != nil {
		return DrawResult{}, err
	}

	unlock := s.locks.Lock(concurrency.PlayerKey(playerID))
	defer unlock()

	p, err := s.store.GetPlayer(ctx, playerID)
	if err != nil {
		return DrawResult{}, err
	}
	outcomes, after, err := s.engine.DrawN(b, fallback, p.PityFor(bannerID), s.unixNow(), n)
	if err != nil {
		return DrawResult{}, err
	}

	charge := s.cost.ForDraws(n)
	charged := s.wallet != nil && charge > 0
	if charged {
		if err := s.wallet.Withdraw(ctx, playerID, charge); err != nil {
			return DrawResult{}, err
		}
	}

	p.SetPity(bannerID, after)
	if err := s.store.SavePlayer(ctx, p); err != nil {
		if charged {
			if rerr := s.wallet.Deposit(ctx, playerID, charge); rerr != nil {
				s.log(ctx).Error("Refund after failed draw", "player", playerID, "amount", charge, "error", rerr)
			}
		}
		return DrawResult{}, fmt.Errorf("save pity for %s: %w", playerID, err)
	}

	for _, out := range outcomes {
		tier := strconv.Itoa(int(out.Tier))
		metrics.Draws.WithLabelValues(bannerID, tier).Inc()
		if out.Guaranteed {
			metrics.HardPity.WithLabelValues(bannerID, tier).Inc()
		}
		if out.FellThrough {
			metrics.FallThrough.WithLabelValues(bannerID).Inc()
		}
		s.log(ctx).Debug("Draw", "banner", bannerID, "player", playerID,
			"tier", out.Tier, "item", out.Item, "roll", out.Roll, "guaranteed", out.Guaranteed)
	}

	if !charged {
		charge = 0
	}
	return DrawResult{
		BannerID: bannerID,
		PlayerID: playerID,
		Outcomes: outcomes,
		Pity:     after,
		Cost:     charge,
	}, nil
}

// PreviewRates returns the effective rate table the player's next draw would use.
// An empty player id previews a fresh player.
func (s *Service) PreviewRates(ctx context.Context, bannerID, playerID string) ([]gacha.TierRate, error) {
	b, fallback, err := s.bannerAndRates(ctx, bannerID)
	if err != nil {
		return nil, err
	}
	var state gacha.PityState
	if playerID != "" {
		p, err := s.store.GetPlayer(ctx, playerID)
		if err != nil {
			return nil, err
		}
		state = p.PityFor(bannerID)
	}
	return gacha.Rates(b, fallback, state)
}

// GetPity returns the player's counters on banner, one entry per tracked tier.
func (s *Service) GetPity(ctx context.Context, playerID, bannerID string) (gacha.PityState, error) {
	b, fallback, err := s.bannerAndRates(ctx, bannerID)
	if err != nil {
		return nil, err
	}
	p, err := s.store.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	stored := p.PityFor(bannerID)
	out := make(gacha.PityState)
	for _, t := range gacha.TrackedTiers(b, fallback) {
		out[t] = stored.Get(t)
	}
	return out, nil
}

// Simulate runs the Monte Carlo simulator against a banner. It reads no player state and
// writes nothing, but still requires the banner's capability.
func (s *Service) Simulate(ctx context.Context, c admin.Cap, bannerID string, p gacha.SimParams) (gacha.SimResult, error) {
	b, fallback, err := s.bannerAndRates(ctx, bannerID)
	if err != nil {
		return gacha.SimResult{}, err
	}
	reg, err := s.store.GetRegistry(ctx)
	if err != nil {
		return gacha.SimResult{}, err
	}
	if err := s.authorize(ctx, reg, c, bannerID); err != nil {
		return gacha.SimResult{}, err
	}
	return gacha.Simulate(b, fallback, p)
}
