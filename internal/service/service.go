// Package service is the externally invocable operation surface. Every operation checks
// the version gate, authorizes, serializes on the entities it writes, mutates a private
// copy and persists it with a single store write.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xtding233/banner-gacha/internal/admin"
	"github.com/xtding233/banner-gacha/internal/apperr"
	"github.com/xtding233/banner-gacha/internal/compat"
	"github.com/xtding233/banner-gacha/internal/concurrency"
	"github.com/xtding233/banner-gacha/internal/gacha"
	"github.com/xtding233/banner-gacha/internal/logger"
	"github.com/xtding233/banner-gacha/internal/metrics"
	"github.com/xtding233/banner-gacha/internal/store"
	"github.com/xtding233/banner-gacha/internal/token"
)

var ErrInvalidPlayer = apperr.New(apperr.CodeInvalidInput, "player id is required")

// Options configures a Service. Zero values select crypto entropy, free draws and the
// wall clock.
type Options struct {
	BinaryVersion uint64
	Entropy       gacha.Entropy
	Wallet        token.Wallet
	Cost          token.Cost
	Clock         func() time.Time
}

type Service struct {
	store  store.Store
	locks  *concurrency.LockManager
	engine *gacha.Engine
	wallet token.Wallet
	cost   token.Cost
	binary uint64
	now    func() time.Time
}

func New(st store.Store, opts Options) *Service {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	binary := opts.BinaryVersion
	if binary == 0 {
		binary = 1
	}
	return &Service{
		store:  st,
		locks:  concurrency.NewLockManager(),
		engine: gacha.NewEngine(opts.Entropy),
		wallet: opts.Wallet,
		cost:   opts.Cost,
		binary: binary,
		now:    clock,
	}
}

// Init creates the system record and the admin registry on first start. When it
// bootstraps the registry it returns the deployer's capability; later starts return nil.
func (s *Service) Init(ctx context.Context) (*admin.Cap, error) {
	unlock := s.locks.Lock(concurrency.SystemKey(), concurrency.RegistryKey())
	defer unlock()

	if _, err := s.store.GetSystem(ctx); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		sys := store.System{Limits: gacha.DefaultRarityLimits(), VersionMarker: s.binary}
		if err := s.store.SaveSystem(ctx, sys); err != nil {
			return nil, fmt.Errorf("initialize system record: %w", err)
		}
		logger.FromContext(ctx).Info("System record initialized", "version_marker", s.binary)
	}

	if _, err := s.store.GetRegistry(ctx); err == nil {
		return nil, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	reg, root := admin.Bootstrap(s.now())
	if err := s.store.SaveRegistry(ctx, reg); err != nil {
		return nil, fmt.Errorf("bootstrap admin registry: %w", err)
	}
	logger.FromContext(ctx).Info("Admin registry bootstrapped", "registry", reg.ID, "cap", root.ID)
	return &root, nil
}

// system loads the system record and rejects the call when its marker does not match
// this binary.
func (s *Service) system(ctx context.Context) (store.System, error) {
	sys, err := s.store.GetSystem(ctx)
	if err != nil {
		return store.System{}, err
	}
	if err := compat.NewGate(s.binary, sys.VersionMarker).Check(); err != nil {
		return store.System{}, err
	}
	return sys, nil
}

// authorize verifies c against target and records denials.
func (s *Service) authorize(ctx context.Context, reg *admin.Registry, c admin.Cap, target string) error {
	if err := reg.Verify(c, target); err != nil {
		code := apperr.GetCode(err)
		metrics.AdminDenials.WithLabelValues(string(code)).Inc()
		logger.FromContext(ctx).Warn("Capability rejected", "cap", c.ID, "target", target, "reason", code)
		return err
	}
	return nil
}

// authorizeRegistry loads the registry and requires a registry-scoped capability.
func (s *Service) authorizeRegistry(ctx context.Context, c admin.Cap) (*admin.Registry, error) {
	reg, err := s.store.GetRegistry(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, reg, c, reg.ID); err != nil {
		return nil, err
	}
	return reg, nil
}

func (s *Service) log(ctx context.Context) *slog.Logger {
	return logger.FromContext(ctx)
}

func (s *Service) unixNow() int64 {
	return s.now().Unix()
}
