package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/xtding233/banner-gacha/internal/admin"
	"github.com/xtding233/banner-gacha/internal/gacha"
)

// Memory is an in-process Store. It copies on every read and write.
type Memory struct {
	mu       sync.RWMutex
	banners  map[string]*gacha.Banner
	players  map[string]*gacha.Player
	registry *admin.Registry
	system   *System
}

func NewMemory() *Memory {
	return &Memory{
		banners: make(map[string]*gacha.Banner),
		players: make(map[string]*gacha.Player),
	}
}

func (m *Memory) CreateBanner(ctx context.Context, b *gacha.Banner, reg *admin.Registry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.banners[b.ID]; ok {
		return fmt.Errorf("%w: banner %s", ErrAlreadyExists, b.ID)
	}
	m.banners[b.ID] = b.Clone()
	if reg != nil {
		m.registry = reg.Clone()
	}
	return nil
}

func (m *Memory) GetBanner(ctx context.Context, id string) (*gacha.Banner, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.banners[id]
	if !ok {
		return nil, fmt.Errorf("%w: banner %s", ErrNotFound, id)
	}
	return b.Clone(), nil
}

func (m *Memory) ListBanners(ctx context.Context) ([]*gacha.Banner, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*gacha.Banner, 0, len(m.banners))
	for _, b := range m.banners {
		out = append(out, b.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SaveBanner(ctx context.Context, b *gacha.Banner) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.banners[b.ID]; !ok {
		return fmt.Errorf("%w: banner %s", ErrNotFound, b.ID)
	}
	m.banners[b.ID] = b.Clone()
	return nil
}

func (m *Memory) GetPlayer(ctx context.Context, id string) (*gacha.Player, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.players[id]; ok {
		return p.Clone(), nil
	}
	return gacha.NewPlayer(id), nil
}

func (m *Memory) SavePlayer(ctx context.Context, p *gacha.Player) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.players[p.ID] = p.Clone()
	return nil
}

func (m *Memory) GetRegistry(ctx context.Context) (*admin.Registry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.registry == nil {
		return nil, fmt.Errorf("%w: admin registry", ErrNotFound)
	}
	return m.registry.Clone(), nil
}

func (m *Memory) SaveRegistry(ctx context.Context, reg *admin.Registry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registry = reg.Clone()
	return nil
}

func (m *Memory) GetSystem(ctx context.Context) (System, error) {
	if err := ctx.Err(); err != nil {
		return System{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.system == nil {
		return System{}, fmt.Errorf("%w: system record", ErrNotFound)
	}
	return m.system.Clone(), nil
}

func (m *Memory) SaveSystem(ctx context.Context, sys System) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := sys.Clone()
	m.system = &cp
	return nil
}

func (m *Memory) ApplyCatalog(ctx context.Context, sys System, creates, updates []*gacha.Banner) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range creates {
		if _, ok := m.banners[b.ID]; ok {
			return fmt.Errorf("%w: banner %s", ErrAlreadyExists, b.ID)
		}
	}
	for _, b := range updates {
		if _, ok := m.banners[b.ID]; !ok {
			return fmt.Errorf("%w: banner %s", ErrNotFound, b.ID)
		}
	}

	cp := sys.Clone()
	m.system = &cp
	for _, b := range creates {
		m.banners[b.ID] = b.Clone()
	}
	for _, b := range updates {
		m.banners[b.ID] = b.Clone()
	}
	return nil
}

func (m *Memory) Close() error { return nil }
