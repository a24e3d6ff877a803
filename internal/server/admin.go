package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xtding233/banner-gacha/internal/admin"
	"github.com/xtding233/banner-gacha/internal/store"
)

func (s *Server) handleMintCap(w http.ResponseWriter, r *http.Request) {
	c, err := s.bearerCap(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req mintCapRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	minted, err := s.svc.MintCap(r.Context(), c, req.ForObject)
	if err != nil {
		respondError(w, r, err)
		return
	}
	tok, err := s.codec.Encode(minted)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, mintCapResponse{Cap: minted, Token: tok})
}

func (s *Server) handleListCaps(w http.ResponseWriter, r *http.Request) {
	c, err := s.bearerCap(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	caps, err := s.svc.ListCaps(r.Context(), c)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string][]admin.CapInfo{"caps": caps})
}

func (s *Server) handleSetEligible(w http.ResponseWriter, r *http.Request) {
	c, err := s.bearerCap(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req eligibleRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	capID := chi.URLParam(r, "cap")
	if *req.Eligible {
		err = s.svc.MarkCapEligible(r.Context(), c, capID)
	} else {
		err = s.svc.MarkCapNotEligible(r.Context(), c, capID)
	}
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"cap": capID, "eligible": *req.Eligible})
}

func (s *Server) handleGetSystem(w http.ResponseWriter, r *http.Request) {
	sys, err := s.svc.System(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sys)
}

// systemMutation resolves the caller's capability, decodes req and renders the
// resulting system record.
func (s *Server) systemMutation(w http.ResponseWriter, r *http.Request, req any,
	apply func(c admin.Cap) (store.System, error)) {
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
	sys, err := apply(c)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sys)
}

func (s *Server) handleSetLimits(w http.ResponseWriter, r *http.Request) {
	var req limitsRequest
	s.systemMutation(w, r, &req, func(c admin.Cap) (store.System, error) {
		return s.svc.SetRarityLimits(r.Context(), c, req.Min, req.Max)
	})
}

func (s *Server) handleSetFallbackRate(w http.ResponseWriter, r *http.Request) {
	tier, err := tierParam(r, "tier")
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req rateRequest
	s.systemMutation(w, r, &req, func(c admin.Cap) (store.System, error) {
		return s.svc.SetFallbackRate(r.Context(), c, tier, *req.Bps)
	})
}

func (s *Server) handleClearFallbackRate(w http.ResponseWriter, r *http.Request) {
	tier, err := tierParam(r, "tier")
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.systemMutation(w, r, nil, func(c admin.Cap) (store.System, error) {
		return s.svc.ClearFallbackRate(r.Context(), c, tier)
	})
}

func (s *Server) handleMigrate(w http.ResponseWriter, r *http.Request) {
	c, err := s.bearerCap(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req migrateRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	v, err := s.svc.Migrate(r.Context(), c, req.To)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}
