// Package storage реализует key-value хранилище состояния сессий.
//
// Запись выполняется по принципу best-effort: ошибки ввода-вывода
// логируются и не прерывают работу сессии, чтение при ошибке возвращает
// отсутствие значения.
package storage

import (
	"context"

	"go.uber.org/zap"
)

// Store описывает контракт key-value хранилища состояния сессии.
// Load сообщает об отсутствии значения вторым результатом, Save и Remove
// никогда не возвращают ошибок.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, bool)
	Save(ctx context.Context, key string, value []byte)
	Remove(ctx context.Context, key string)
	Close() error
}

// Open выбирает бэкенд хранилища по доступным возможностям окружения:
// PostgreSQL при заданном DSN, иначе локальный файл SQLite, иначе память.
// Выбор выполняется один раз на процесс; недоступный бэкенд приводит
// к переходу на следующий, а не к фатальной ошибке.
func Open(databaseURI, storagePath string, logger *zap.Logger) Store {
	if databaseURI != "" {
		s, err := NewPostgresStore(databaseURI, logger)
		if err == nil {
			logger.Info("using postgres storage")
			return s
		}
		logger.Error("postgres storage unavailable, falling back", zap.Error(err))
	}

	if storagePath != "" {
		s, err := NewSQLiteStore(storagePath, logger)
		if err == nil {
			logger.Info("using sqlite storage", zap.String("path", storagePath))
			return s
		}
		logger.Error("sqlite storage unavailable, falling back", zap.Error(err))
	}

	logger.Info("using in-memory storage")
	return NewMemoryStore()
}
