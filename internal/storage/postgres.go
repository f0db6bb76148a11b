package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore хранит состояние сессий в таблице key-value в PostgreSQL.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore создаёт хранилище и инициализирует схему БД через миграции.
func NewPostgresStore(dsn string, logger *zap.Logger) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresStore{pool: pool, logger: logger}

	if err := s.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *PostgresStore) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Load читает значение по ключу. Ошибка чтения трактуется как отсутствие значения.
func (s *PostgresStore) Load(ctx context.Context, key string) ([]byte, bool) {
	var value []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM workflow_state WHERE key = $1`, key,
	).Scan(&value)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			s.logger.Error("storage load failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	return value, true
}

// Save записывает значение по ключу. Ошибка записи логируется и не возвращается.
func (s *PostgresStore) Save(ctx context.Context, key string, value []byte) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO workflow_state (key, value, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value,
	)
	if err != nil {
		s.logger.Error("storage save failed", zap.String("key", key), zap.Error(err))
	}
}

// Remove удаляет значение по ключу. Отсутствие ключа не считается ошибкой.
func (s *PostgresStore) Remove(ctx context.Context, key string) {
	_, err := s.pool.Exec(ctx, `DELETE FROM workflow_state WHERE key = $1`, key)
	if err != nil {
		s.logger.Error("storage remove failed", zap.String("key", key), zap.Error(err))
	}
}

// Close закрывает пул соединений.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
