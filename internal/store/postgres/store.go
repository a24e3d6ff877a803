// Package postgres implements store.Store on PostgreSQL with pgx. Each record is one
// JSONB document per row.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	trmpgx "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xtding233/banner-gacha/internal/admin"
	"github.com/xtding233/banner-gacha/internal/gacha"
	"github.com/xtding233/banner-gacha/internal/store"
)

const (
	tableBanners  = "banners"
	tablePlayers  = "players"
	tableRegistry = "admin_registry"
	tableSystem   = "system_state"

	colID            = "id"
	colDoc           = "doc"
	colVersion       = "version"
	colUpdatedAt     = "updated_at"
	colSlot          = "slot"
	colRegistryID    = "registry_id"
	colVersionMarker = "version_marker"

	singletonSlot = 1

	uniqueViolation = "23505"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Store is the PostgreSQL Store.
type Store struct {
	pool      *pgxpool.Pool
	txManager trm.Manager
	getter    *trmpgx.CtxGetter
}

// New wraps an existing pool. Call Migrate first.
func New(pool *pgxpool.Pool) (*Store, error) {
	m, err := manager.New(trmpgx.NewDefaultFactory(pool))
	if err != nil {
		return nil, fmt.Errorf("create tx manager: %w", err)
	}
	return &Store{pool: pool, txManager: m, getter: trmpgx.DefaultCtxGetter}, nil
}

// conn returns the transaction bound to ctx, or the pool outside a transaction.
func (s *Store) conn(ctx context.Context) trmpgx.Tr {
	return s.getter.DefaultTrOrDB(ctx, s.pool)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) CreateBanner(ctx context.Context, b *gacha.Banner, reg *admin.Registry) error {
	return s.txManager.Do(ctx, func(txCtx context.Context) error {
		if err := s.insertBanner(txCtx, b); err != nil {
			return err
		}
		if reg == nil {
			return nil
		}
		return s.upsertRegistry(txCtx, reg)
	})
}

func (s *Store) insertBanner(ctx context.Context, b *gacha.Banner) error {
	doc, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode banner: %w", err)
	}
	query, args, err := psql.Insert(tableBanners).
		Columns(colID, colDoc, colVersion).
		Values(b.ID, doc, int64(b.Version)).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := s.conn(ctx).Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: banner %s", store.ErrAlreadyExists, b.ID)
		}
		return fmt.Errorf("insert banner: %w", err)
	}
	return nil
}

func (s *Store) GetBanner(ctx context.Context, id string) (*gacha.Banner, error) {
	query, args, err := psql.Select(colDoc).From(tableBanners).Where(sq.Eq{colID: id}).ToSql()
	if err != nil {
		return nil, err
	}
	var doc []byte
	if err := s.conn(ctx).QueryRow(ctx, query, args...).Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: banner %s", store.ErrNotFound, id)
		}
		return nil, fmt.Errorf("select banner: %w", err)
	}
	var b gacha.Banner
	if err := json.Unmarshal(doc, &b); err != nil {
		return nil, fmt.Errorf("decode banner %s: %w", id, err)
	}
	return &b, nil
}

func (s *Store) ListBanners(ctx context.Context) ([]*gacha.Banner, error) {
	query, args, err := psql.Select(colDoc).From(tableBanners).OrderBy(colID).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list banners: %w", err)
	}
	docs, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, fmt.Errorf("list banners: %w", err)
	}
	out := make([]*gacha.Banner, 0, len(docs))
	for _, doc := range docs {
		var b gacha.Banner
		if err := json.Unmarshal(doc, &b); err != nil {
			return nil, fmt.Errorf("decode banner: %w", err)
		}
		out = append(out, &b)
	}
	return out, nil
}

func (s *Store) SaveBanner(ctx context.Context, b *gacha.Banner) error {
	doc, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode banner: %w", err)
	}
	query, args, err := psql.Update(tableBanners).
		Set(colDoc, doc).
		Set(colVersion, int64(b.Version)).
		Set(colUpdatedAt, sq.Expr("now()")).
		Where(sq.Eq{colID: b.ID}).
		ToSql()
	if err != nil {
		return err
	}
	tag, err := s.conn(ctx).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update banner: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: banner %s", store.ErrNotFound, b.ID)
	}
	return nil
}

func (s *Store) GetPlayer(ctx context.Context, id string) (*gacha.Player, error) {
	query, args, err := psql.Select(colDoc).From(tablePlayers).Where(sq.Eq{colID: id}).ToSql()
	if err != nil {
		return nil, err
	}
	var doc []byte
	if err := s.conn(ctx).QueryRow(ctx, query, args...).Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return gacha.NewPlayer(id), nil
		}
		return nil, fmt.Errorf("select player: %w", err)
	}
	var p gacha.Player
	if err := json.Unmarshal(doc, &p); err != nil {
		return nil, fmt.Errorf("decode player %s: %w", id, err)
	}
	return &p, nil
}

func (s *Store) SavePlayer(ctx context.Context, p *gacha.Player) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode player: %w", err)
	}
	query, args, err := psql.Insert(tablePlayers).
		Columns(colID, colDoc).
		Values(p.ID, doc).
		Suffix("ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()").
		ToSql()
	if err != nil {
		return err
	}
	if _, err := s.conn(ctx).Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert player: %w", err)
	}
	return nil
}

func (s *Store) GetRegistry(ctx context.Context) (*admin.Registry, error) {
	query, args, err := psql.Select(colDoc).From(tableRegistry).Where(sq.Eq{colSlot: singletonSlot}).ToSql()
	if err != nil {
		return nil, err
	}
	var doc []byte
	if err := s.conn(ctx).QueryRow(ctx, query, args...).Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: admin registry", store.ErrNotFound)
		}
		return nil, fmt.Errorf("select registry: %w", err)
	}
	var reg admin.Registry
	if err := json.Unmarshal(doc, &reg); err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}
	return &reg, nil
}

func (s *Store) SaveRegistry(ctx context.Context, reg *admin.Registry) error {
	return s.upsertRegistry(ctx, reg)
}

func (s *Store) upsertRegistry(ctx context.Context, reg *admin.Registry) error {
	doc, err := json.Marshal(reg)
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	query, args, err := psql.Insert(tableRegistry).
		Columns(colSlot, colRegistryID, colDoc).
		Values(singletonSlot, reg.ID, doc).
		Suffix("ON CONFLICT (slot) DO UPDATE SET registry_id = EXCLUDED.registry_id, doc = EXCLUDED.doc, updated_at = now()").
		ToSql()
	if err != nil {
		return err
	}
	if _, err := s.conn(ctx).Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert registry: %w", err)
	}
	return nil
}

func (s *Store) GetSystem(ctx context.Context) (store.System, error) {
	query, args, err := psql.Select(colDoc).From(tableSystem).Where(sq.Eq{colSlot: singletonSlot}).ToSql()
	if err != nil {
		return store.System{}, err
	}
	var doc []byte
	if err := s.conn(ctx).QueryRow(ctx, query, args...).Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.System{}, fmt.Errorf("%w: system record", store.ErrNotFound)
		}
		return store.System{}, fmt.Errorf("select system: %w", err)
	}
	var sys store.System
	if err := json.Unmarshal(doc, &sys); err != nil {
		return store.System{}, fmt.Errorf("decode system: %w", err)
	}
	return sys, nil
}

func (s *Store) SaveSystem(ctx context.Context, sys store.System) error {
	doc, err := json.Marshal(sys)
	if err != nil {
		return fmt.Errorf("encode system: %w", err)
	}
	query, args, err := psql.Insert(tableSystem).
		Columns(colSlot, colVersionMarker, colDoc).
		Values(singletonSlot, int64(sys.VersionMarker), doc).
		Suffix("ON CONFLICT (slot) DO UPDATE SET version_marker = EXCLUDED.version_marker, doc = EXCLUDED.doc, updated_at = now()").
		ToSql()
	if err != nil {
		return err
	}
	if _, err := s.conn(ctx).Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert system: %w", err)
	}
	return nil
}

func (s *Store) ApplyCatalog(ctx context.Context, sys store.System, creates, updates []*gacha.Banner) error {
	return s.txManager.Do(ctx, func(txCtx context.Context) error {
		if err := s.SaveSystem(txCtx, sys); err != nil {
			return err
		}
		for _, b := range creates {
			if err := s.insertBanner(txCtx, b); err != nil {
				return err
			}
		}
		for _, b := range updates {
			if err := s.SaveBanner(txCtx, b); err != nil {
				return err
			}
		}
		return nil
	})
}
