package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xtding233/banner-gacha/internal/service"
)

const idempotencyHeader = "Idempotency-Key"

// handleDraw performs one or more draws. A request carrying an Idempotency-Key replays
// the stored receipt instead of drawing again.
func (s *Server) handleDraw(w http.ResponseWriter, r *http.Request) {
	var req drawRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Count == 0 {
		req.Count = 1
	}
	bannerID := chi.URLParam(r, "id")

	key := r.Header.Get(idempotencyHeader)
	if key == "" {
		res, err := s.svc.DrawMulti(r.Context(), bannerID, req.Player, req.Count)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, res)
		return
	}

	// Requests sharing a key collapse onto one draw; the receipt is cached before the
	// flight ends so later requests replay it.
	key = bannerID + "\x00" + req.Player + "\x00" + key
	fresh := false
	v, err, _ := s.inflight.Do(key, func() (any, error) {
		if res, ok := s.receipts.Get(key); ok {
			return res, nil
		}
		res, err := s.svc.DrawMulti(context.WithoutCancel(r.Context()), bannerID, req.Player, req.Count)
		if err != nil {
			return nil, err
		}
		s.receipts.Add(key, res)
		fresh = true
		return res, nil
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	if !fresh {
		w.Header().Set("Idempotent-Replayed", "true")
	}
	respondJSON(w, http.StatusOK, v.(service.DrawResult))
}

func (s *Server) handleGetPity(w http.ResponseWriter, r *http.Request) {
	player, bannerID := chi.URLParam(r, "player"), chi.URLParam(r, "banner")
	pity, err := s.svc.GetPity(r.Context(), player, bannerID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"player": player, "banner_id": bannerID, "pity": pity})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	player := chi.URLParam(r, "player")
	bal, err := s.svc.Balance(r.Context(), player)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, balanceResponse{Player: player, Balance: bal})
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	c, err := s.bearerCap(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req depositRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	player := chi.URLParam(r, "player")
	bal, err := s.svc.Deposit(r.Context(), c, player, req.Amount)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, balanceResponse{Player: player, Balance: bal})
}
