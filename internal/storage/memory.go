package storage

import (
	"context"
	"sync"
)

// MemoryStore хранит состояние сессий в памяти процесса.
// Используется как запасной бэкенд и в тестах.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore создаёт пустое хранилище в памяти.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Load читает значение по ключу.
func (s *MemoryStore) Load(_ context.Context, key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.data[key]
	if !ok {
		return nil, false
	}

	cp := make([]byte, len(value))
	copy(cp, value)
	return cp, true
}

// Save записывает значение по ключу.
func (s *MemoryStore) Save(_ context.Context, key string, value []byte) {
	cp := make([]byte, len(value))
	copy(cp, value)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = cp
}

// Remove удаляет значение по ключу.
func (s *MemoryStore) Remove(_ context.Context, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

// Close ничего не делает для хранилища в памяти.
func (s *MemoryStore) Close() error {
	return nil
}

// Len возвращает количество сохранённых ключей.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
