package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xtding233/banner-gacha/internal/admin"
	"github.com/xtding233/banner-gacha/internal/gacha"
	"github.com/xtding233/banner-gacha/internal/service"
)

func (s *Server) handleCreateBanner(w http.ResponseWriter, r *http.Request) {
	c, err := s.bearerCap(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req createBannerRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	b, bannerCap, err := s.svc.CreateBanner(r.Context(), c, service.BannerSpec{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	tok, err := s.codec.Encode(bannerCap)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, createBannerResponse{Banner: b, Cap: bannerCap, CapToken: tok})
}

func (s *Server) handleListBanners(w http.ResponseWriter, r *http.Request) {
	banners, err := s.svc.ListBanners(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"banners": banners})
}

func (s *Server) handleGetBanner(w http.ResponseWriter, r *http.Request) {
	b, err := s.svc.GetBanner(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, b)
}

// bannerMutation decodes req (when non-nil), resolves the caller's capability and hands
// both to apply. The updated banner is the response.
func (s *Server) bannerMutation(w http.ResponseWriter, r *http.Request, req any,
	apply func(c admin.Cap, id string) (*gacha.Banner, error)) {
	c, err := s.bearerCap(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if req != nil {
		if err := decode(r, req); err != nil {
			respondError(w, r, err)
			return
		}
	}
	b, err := apply(c, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, b)
}

// tierMutation is bannerMutation for routes carrying a {tier} parameter.
func (s *Server) tierMutation(w http.ResponseWriter, r *http.Request, req any,
	apply func(c admin.Cap, id string, tier gacha.Tier) (*gacha.Banner, error)) {
	tier, err := tierParam(r, "tier")
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.bannerMutation(w, r, req, func(c admin.Cap, id string) (*gacha.Banner, error) {
		return apply(c, id, tier)
	})
}

func (s *Server) handleUpdateBannerInfo(w http.ResponseWriter, r *http.Request) {
	var req updateInfoRequest
	s.bannerMutation(w, r, &req, func(c admin.Cap, id string) (*gacha.Banner, error) {
		return s.svc.UpdateBannerInfo(r.Context(), c, id, req.Name, req.Description)
	})
}

func (s *Server) handleSetWindow(w http.ResponseWriter, r *http.Request) {
	var req windowRequest
	s.bannerMutation(w, r, &req, func(c admin.Cap, id string) (*gacha.Banner, error) {
		return s.svc.SetBannerWindow(r.Context(), c, id, req.StartTime, req.EndTime)
	})
}

func (s *Server) handleSetActive(w http.ResponseWriter, r *http.Request) {
	var req activeRequest
	s.bannerMutation(w, r, &req, func(c admin.Cap, id string) (*gacha.Banner, error) {
		return s.svc.SetBannerActive(r.Context(), c, id, *req.Active)
	})
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	s.bannerMutation(w, r, &req, func(c admin.Cap, id string) (*gacha.Banner, error) {
		return s.svc.AddPoolItem(r.Context(), c, id, req.Item, req.Tier)
	})
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	s.bannerMutation(w, r, nil, func(c admin.Cap, id string) (*gacha.Banner, error) {
		return s.svc.RemovePoolItem(r.Context(), c, id, chi.URLParam(r, "item"))
	})
}

func (s *Server) handleSetBaseRate(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	s.tierMutation(w, r, &req, func(c admin.Cap, id string, tier gacha.Tier) (*gacha.Banner, error) {
		return s.svc.SetBaseRate(r.Context(), c, id, tier, *req.Bps)
	})
}

func (s *Server) handleClearBaseRate(w http.ResponseWriter, r *http.Request) {
	s.tierMutation(w, r, nil, func(c admin.Cap, id string, tier gacha.Tier) (*gacha.Banner, error) {
		return s.svc.ClearBaseRate(r.Context(), c, id, tier)
	})
}

func (s *Server) handleSetBoost(w http.ResponseWriter, r *http.Request) {
	var req boostRequest
	s.bannerMutation(w, r, &req, func(c admin.Cap, id string) (*gacha.Banner, error) {
		return s.svc.ConfigureFeaturedBoost(r.Context(), c, id, chi.URLParam(r, "item"), req.Multiplier)
	})
}

func (s *Server) handleClearBoost(w http.ResponseWriter, r *http.Request) {
	s.bannerMutation(w, r, nil, func(c admin.Cap, id string) (*gacha.Banner, error) {
		return s.svc.ClearFeaturedBoost(r.Context(), c, id, chi.URLParam(r, "item"))
	})
}

func (s *Server) handleConfigurePity(w http.ResponseWriter, r *http.Request) {
	var req gacha.PityUpdate
	s.tierMutation(w, r, &req, func(c admin.Cap, id string, tier gacha.Tier) (*gacha.Banner, error) {
		return s.svc.ConfigurePity(r.Context(), c, id, tier, req)
	})
}

func (s *Server) handleClearPity(w http.ResponseWriter, r *http.Request) {
	s.tierMutation(w, r, nil, func(c admin.Cap, id string, tier gacha.Tier) (*gacha.Banner, error) {
		return s.svc.ClearPity(r.Context(), c, id, tier)
	})
}

func (s *Server) handleSetDefaultTier(w http.ResponseWriter, r *http.Request) {
	var req defaultTierRequest
	s.bannerMutation(w, r, &req, func(c admin.Cap, id string) (*gacha.Banner, error) {
		return s.svc.SetDefaultTier(r.Context(), c, id, req.Tier)
	})
}

func (s *Server) handlePreviewRates(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rates, err := s.svc.PreviewRates(r.Context(), id, r.URL.Query().Get("player"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"banner_id": id, "rates": rates})
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	c, err := s.bearerCap(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	trials, err := queryInt(r, "trials", 1000)
	if err != nil {
		respondError(w, r, err)
		return
	}
	draws, err := queryInt(r, "draws", 100)
	if err != nil {
		respondError(w, r, err)
		return
	}
	target, err := queryUint(r, "target", 5)
	if err != nil {
		respondError(w, r, err)
		return
	}
	seed, err := queryUint(r, "seed", 1)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if target > 255 {
		respondError(w, r, errInvalidParam.WithMetadata("param", "target"))
		return
	}
	res, err := s.svc.Simulate(r.Context(), c, chi.URLParam(r, "id"), gacha.SimParams{
		Trials:        trials,
		DrawsPerTrial: draws,
		TargetTier:    gacha.Tier(target),
		Seed:          seed,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}
