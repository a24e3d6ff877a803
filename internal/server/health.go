package server

import (
	"net/http"
)

type healthResponse struct {
	Status string `json:"status"`
}

type versionResponse struct {
	Build  string `json:"build,omitempty"`
	Binary uint64 `json:"binary"`
	Marker uint64 `json:"marker"`
	// Compatible is false when the stored state needs a migration before use.
	Compatible bool `json:"compatible"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	v, err := s.svc.Version(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, versionResponse{
		Build:      s.build,
		Binary:     v.Binary,
		Marker:     v.Marker,
		Compatible: v.Binary == v.Marker,
	})
}
