// Package store defines persistence for banners, players, the admin registry and the
// process-wide system record.
package store

import (
	"context"

	"github.com/xtding233/banner-gacha/internal/admin"
	"github.com/xtding233/banner-gacha/internal/apperr"
	"github.com/xtding233/banner-gacha/internal/gacha"
)

var (
	ErrNotFound      = apperr.New(apperr.CodeNotFound, "not found")
	ErrAlreadyExists = apperr.New(apperr.CodeAlreadyExists, "already exists")
)

// System holds process-wide state: tier bounds, fallback rates and the version marker.
type System struct {
	Limits        gacha.RarityLimits       `json:"limits"`
	Fallback      gacha.RarityRateRegistry `json:"fallback"`
	VersionMarker uint64                   `json:"version_marker"`
}

func (s System) Clone() System {
	s.Fallback = s.Fallback.Clone()
	return s
}

// Store persists records. Every method writes or reads exactly one logical unit; callers
// never observe partial writes. Returned values are copies the caller may mutate.
type Store interface {
	// CreateBanner inserts b and replaces the registry in one unit. ErrAlreadyExists on duplicate id.
	CreateBanner(ctx context.Context, b *gacha.Banner, reg *admin.Registry) error
	// GetBanner returns ErrNotFound for unknown ids.
	GetBanner(ctx context.Context, id string) (*gacha.Banner, error)
	// ListBanners returns banners ordered by id.
	ListBanners(ctx context.Context) ([]*gacha.Banner, error)
	// SaveBanner overwrites an existing banner. ErrNotFound when absent.
	SaveBanner(ctx context.Context, b *gacha.Banner) error

	// GetPlayer returns an empty player for unknown ids.
	GetPlayer(ctx context.Context, id string) (*gacha.Player, error)
	SavePlayer(ctx context.Context, p *gacha.Player) error

	// GetRegistry returns ErrNotFound before bootstrap.
	GetRegistry(ctx context.Context) (*admin.Registry, error)
	SaveRegistry(ctx context.Context, reg *admin.Registry) error

	// GetSystem returns ErrNotFound before initialization.
	GetSystem(ctx context.Context) (System, error)
	SaveSystem(ctx context.Context, sys System) error

	// ApplyCatalog saves sys, inserts creates and overwrites updates in one unit. Nothing
	// is written when any banner in creates exists or any banner in updates is missing.
	ApplyCatalog(ctx context.Context, sys System, creates, updates []*gacha.Banner) error

	Close() error
}
