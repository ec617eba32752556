package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
)

type setting struct {
	bun.BaseModel `bun:"table:settings,alias:s"`
	Key           string `bun:"key,pk"`
	Value         string `bun:"value,notnull"`
}

// PostgresStore keeps settings in a postgres table through bun.
type PostgresStore struct {
	db *bun.DB
}

// NewPostgresStore connects to dsn and creates the settings table if needed.
func NewPostgresStore(ctx context.Context, dsn string, debug bool) (*PostgresStore, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	s := NewPostgresStoreFromDB(sqldb, debug)
	if err := s.Init(ctx); err != nil {
		sqldb.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStoreFromDB wraps an open connection pool.
func NewPostgresStoreFromDB(sqldb *sql.DB, debug bool) *PostgresStore {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Init(ctx context.Context) error {
	_, err := s.db.NewCreateTable().Model((*setting)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create settings table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) (string, bool, error) {
	var row setting
	err := s.db.NewSelect().Model(&row).Where("key = ?", key).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read setting: %w", err)
	}
	return row.Value, true, nil
}

func (s *PostgresStore) Set(ctx context.Context, key, value string) error {
	row := &setting{Key: key, Value: value}
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to write setting: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
