// Package sqlite provides a single-file Store backed by modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/xtding233/banner-gacha/internal/admin"
	"github.com/xtding233/banner-gacha/internal/gacha"
	"github.com/xtding233/banner-gacha/internal/store"
	"github.com/xtding233/banner-gacha/internal/store/sqlite/migrations"
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
)

// Store persists each record as a JSON document in one row.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	clean := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(clean), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	dsn := clean + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// one writer at a time; sqlite serializes writes anyway
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	provider, err := goose.NewProvider(database.DialectSQLite3, db, migrations.FS)
	if err != nil {
		return err
	}
	_, err = provider.Up(ctx)
	return err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) CreateBanner(ctx context.Context, b *gacha.Banner, reg *admin.Registry) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.insertBanner(ctx, tx, b); err != nil {
			return err
		}
		if reg == nil {
			return nil
		}
		return s.upsertRegistry(ctx, tx, reg)
	})
}

// inTx runs fn in one transaction, rolling back when fn fails.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) insertBanner(ctx context.Context, db execer, b *gacha.Banner) error {
	doc, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode banner: %w", err)
	}
	query, args, err := sq.Insert(tableBanners).
		Columns(colID, colDoc, colVersion, colUpdatedAt).
		Values(b.ID, string(doc), int64(b.Version), s.now().UnixMilli()).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: banner %s", store.ErrAlreadyExists, b.ID)
		}
		return fmt.Errorf("insert banner: %w", err)
	}
	return nil
}

func (s *Store) GetBanner(ctx context.Context, id string) (*gacha.Banner, error) {
	query, args, err := sq.Select(colDoc).From(tableBanners).Where(sq.Eq{colID: id}).ToSql()
	if err != nil {
		return nil, err
	}
	var doc string
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: banner %s", store.ErrNotFound, id)
		}
		return nil, fmt.Errorf("select banner: %w", err)
	}
	var b gacha.Banner
	if err := json.Unmarshal([]byte(doc), &b); err != nil {
		return nil, fmt.Errorf("decode banner %s: %w", id, err)
	}
	return &b, nil
}

func (s *Store) ListBanners(ctx context.Context) ([]*gacha.Banner, error) {
	query, args, err := sq.Select(colDoc).From(tableBanners).OrderBy(colID).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list banners: %w", err)
	}
	defer rows.Close()

	var out []*gacha.Banner
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var b gacha.Banner
		if err := json.Unmarshal([]byte(doc), &b); err != nil {
			return nil, fmt.Errorf("decode banner: %w", err)
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}

func (s *Store) SaveBanner(ctx context.Context, b *gacha.Banner) error {
	return s.updateBanner(ctx, s.db, b)
}

func (s *Store) updateBanner(ctx context.Context, db execer, b *gacha.Banner) error {
	doc, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode banner: %w", err)
	}
	query, args, err := sq.Update(tableBanners).
		Set(colDoc, string(doc)).
		Set(colVersion, int64(b.Version)).
		Set(colUpdatedAt, s.now().UnixMilli()).
		Where(sq.Eq{colID: b.ID}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update banner: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: banner %s", store.ErrNotFound, b.ID)
	}
	return nil
}

func (s *Store) GetPlayer(ctx context.Context, id string) (*gacha.Player, error) {
	query, args, err := sq.Select(colDoc).From(tablePlayers).Where(sq.Eq{colID: id}).ToSql()
	if err != nil {
		return nil, err
	}
	var doc string
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return gacha.NewPlayer(id), nil
		}
		return nil, fmt.Errorf("select player: %w", err)
	}
	var p gacha.Player
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return nil, fmt.Errorf("decode player %s: %w", id, err)
	}
	return &p, nil
}

func (s *Store) SavePlayer(ctx context.Context, p *gacha.Player) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode player: %w", err)
	}
	query, args, err := sq.Insert(tablePlayers).
		Columns(colID, colDoc, colUpdatedAt).
		Values(p.ID, string(doc), s.now().UnixMilli()).
		Suffix("ON CONFLICT (id) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert player: %w", err)
	}
	return nil
}

func (s *Store) GetRegistry(ctx context.Context) (*admin.Registry, error) {
	query, args, err := sq.Select(colDoc).From(tableRegistry).Where(sq.Eq{colSlot: singletonSlot}).ToSql()
	if err != nil {
		return nil, err
	}
	var doc string
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: admin registry", store.ErrNotFound)
		}
		return nil, fmt.Errorf("select registry: %w", err)
	}
	var reg admin.Registry
	if err := json.Unmarshal([]byte(doc), &reg); err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}
	return &reg, nil
}

func (s *Store) SaveRegistry(ctx context.Context, reg *admin.Registry) error {
	return s.upsertRegistry(ctx, s.db, reg)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) upsertRegistry(ctx context.Context, db execer, reg *admin.Registry) error {
	doc, err := json.Marshal(reg)
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	query, args, err := sq.Insert(tableRegistry).
		Columns(colSlot, colRegistryID, colDoc, colUpdatedAt).
		Values(singletonSlot, reg.ID, string(doc), s.now().UnixMilli()).
		Suffix("ON CONFLICT (slot) DO UPDATE SET registry_id = excluded.registry_id, doc = excluded.doc, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert registry: %w", err)
	}
	return nil
}

func (s *Store) GetSystem(ctx context.Context) (store.System, error) {
	query, args, err := sq.Select(colDoc).From(tableSystem).Where(sq.Eq{colSlot: singletonSlot}).ToSql()
	if err != nil {
		return store.System{}, err
	}
	var doc string
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.System{}, fmt.Errorf("%w: system record", store.ErrNotFound)
		}
		return store.System{}, fmt.Errorf("select system: %w", err)
	}
	var sys store.System
	if err := json.Unmarshal([]byte(doc), &sys); err != nil {
		return store.System{}, fmt.Errorf("decode system: %w", err)
	}
	return sys, nil
}

func (s *Store) SaveSystem(ctx context.Context, sys store.System) error {
	return s.upsertSystem(ctx, s.db, sys)
}

func (s *Store) upsertSystem(ctx context.Context, db execer, sys store.System) error {
	doc, err := json.Marshal(sys)
	if err != nil {
		return fmt.Errorf("encode system: %w", err)
	}
	query, args, err := sq.Insert(tableSystem).
		Columns(colSlot, colVersionMarker, colDoc, colUpdatedAt).
		Values(singletonSlot, int64(sys.VersionMarker), string(doc), s.now().UnixMilli()).
		Suffix("ON CONFLICT (slot) DO UPDATE SET version_marker = excluded.version_marker, doc = excluded.doc, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert system: %w", err)
	}
	return nil
}

func (s *Store) ApplyCatalog(ctx context.Context, sys store.System, creates, updates []*gacha.Banner) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.upsertSystem(ctx, tx, sys); err != nil {
			return err
		}
		for _, b := range creates {
			if err := s.insertBanner(ctx, tx, b); err != nil {
				return err
			}
		}
		for _, b := range updates {
			if err := s.updateBanner(ctx, tx, b); err != nil {
				return err
			}
		}
		return nil
	})
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
		return true
	}
	return false
}
