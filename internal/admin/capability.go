// Package admin implements capability-based administration: a registry issues opaque
// capabilities bound to one object id and keeps the authoritative eligibility table.
package admin

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/xtding233/banner-gacha/internal/apperr"
)

var (
	ErrWrongScope   = apperr.New(apperr.CodeCapabilityWrongScope, "capability is not scoped to this object")
	ErrIneligible   = apperr.New(apperr.CodeCapabilityIneligible, "capability is not eligible")
	ErrUnknownCap   = apperr.New(apperr.CodeCapabilityUnknown, "capability was not issued by this registry")
	ErrMissingCap   = apperr.New(apperr.CodeCapabilityMissing, "capability required")
	ErrInvalidToken = apperr.New(apperr.CodeCapabilityInvalidToken, "capability token is invalid")
	ErrNoObject     = apperr.New(apperr.CodeInvalidInput, "object id is required")
)

// Cap is the credential a caller presents. It confers nothing by itself; the registry
// decides whether it is honored.
type Cap struct {
	ID        string `json:"id"`
	ForObject string `json:"for_object"`
}

// Record is the registry's view of an issued capability.
type Record struct {
	ForObject string    `json:"for_object"`
	Eligible  bool      `json:"eligible"`
	IssuedAt  time.Time `json:"issued_at"`
	IssuedBy  string    `json:"issued_by,omitempty"`
}

// CapInfo is one row of the audit listing.
type CapInfo struct {
	ID string `json:"id"`
	Record
}

// Registry is the AdminRegistry: capability id -> binding and eligibility.
// Records are never deleted, only disabled.
type Registry struct {
	ID   string            `json:"id"`
	Caps map[string]Record `json:"caps"`
}

// Bootstrap creates a registry and the deployer's registry-scoped capability.
func Bootstrap(now time.Time) (*Registry, Cap) {
	r := &Registry{
		ID:   uuid.NewString(),
		Caps: make(map[string]Record),
	}
	c := Cap{ID: uuid.NewString(), ForObject: r.ID}
	r.Caps[c.ID] = Record{ForObject: r.ID, Eligible: true, IssuedAt: now.UTC()}
	return r, c
}

// Verify succeeds only when the capability is scoped to target, was issued by this
// registry with that same binding, and is currently eligible.
func (r *Registry) Verify(c Cap, target string) error {
	if c.ID == "" {
		return ErrMissingCap
	}
	if c.ForObject != target {
		return fmt.Errorf("%w: %s", ErrWrongScope.WithMetadata("target", target), target)
	}
	rec, ok := r.Caps[c.ID]
	if !ok {
		return ErrUnknownCap
	}
	// presented binding must match the issued one
	if rec.ForObject != c.ForObject {
		return fmt.Errorf("%w: %s", ErrWrongScope.WithMetadata("target", target), target)
	}
	if !rec.Eligible {
		return ErrIneligible
	}
	return nil
}

// Mint issues a new eligible capability for forObject. authority must be valid for the registry.
func (r *Registry) Mint(authority Cap, forObject string, now time.Time) (Cap, error) {
	if err := r.Verify(authority, r.ID); err != nil {
		return Cap{}, err
	}
	if forObject == "" {
		return Cap{}, ErrNoObject
	}
	if r.Caps == nil {
		r.Caps = make(map[string]Record)
	}
	c := Cap{ID: uuid.NewString(), ForObject: forObject}
	r.Caps[c.ID] = Record{ForObject: forObject, Eligible: true, IssuedAt: now.UTC(), IssuedBy: authority.ID}
	return c, nil
}

// MarkEligible restores a capability. Idempotent.
func (r *Registry) MarkEligible(authority Cap, capID string) error {
	return r.setEligible(authority, capID, true)
}

// MarkNotEligible disables a capability without destroying it. Idempotent.
func (r *Registry) MarkNotEligible(authority Cap, capID string) error {
	return r.setEligible(authority, capID, false)
}

func (r *Registry) setEligible(authority Cap, capID string, eligible bool) error {
	if err := r.Verify(authority, r.ID); err != nil {
		return err
	}
	rec, ok := r.Caps[capID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCap.WithMetadata("cap", capID), capID)
	}
	rec.Eligible = eligible
	r.Caps[capID] = rec
	return nil
}

// Eligible reports the stored eligibility; unknown ids are not eligible.
func (r *Registry) Eligible(capID string) bool {
	return r.Caps[capID].Eligible
}

// List returns every issued capability, oldest first.
func (r *Registry) List() []CapInfo {
	out := make([]CapInfo, 0, len(r.Caps))
	for id, rec := range r.Caps {
		out = append(out, CapInfo{ID: id, Record: rec})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].IssuedAt.Equal(out[j].IssuedAt) {
			return out[i].IssuedAt.Before(out[j].IssuedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *Registry) Clone() *Registry {
	if r == nil {
		return nil
	}
	out := &Registry{ID: r.ID, Caps: make(map[string]Record, len(r.Caps))}
	for k, v := range r.Caps {
		out.Caps[k] = v
	}
	return out
}
