package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteStore хранит состояние сессий в локальном файле SQLite.
// Используется, когда PostgreSQL недоступен.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore открывает файл базы и создаёт таблицу при необходимости.
func NewSQLiteStore(path string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Единственный писатель: состояние сессий мутирует только сервис.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(
		`CREATE TABLE IF NOT EXISTS workflow_state (
			key   TEXT PRIMARY KEY,
			value BLOB NOT NULL
		)`,
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Load читает значение по ключу. Ошибка чтения трактуется как отсутствие значения.
func (s *SQLiteStore) Load(ctx context.Context, key string) ([]byte, bool) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM workflow_state WHERE key = ?`, key,
	).Scan(&value)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Error("storage load failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	return value, true
}

// Save записывает значение по ключу. Ошибка записи логируется и не возвращается.
func (s *SQLiteStore) Save(ctx context.Context, key string, value []byte) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO workflow_state (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		s.logger.Error("storage save failed", zap.String("key", key), zap.Error(err))
	}
}

// Remove удаляет значение по ключу.
func (s *SQLiteStore) Remove(ctx context.Context, key string) {
	_, err := s.db.ExecContext(ctx, `DELETE FROM workflow_state WHERE key = ?`, key)
	if err != nil {
		s.logger.Error("storage remove failed", zap.String("key", key), zap.Error(err))
	}
}

// Close закрывает базу данных.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
