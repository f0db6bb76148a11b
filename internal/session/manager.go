package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/team089/optimal-cashback/internal/consent"
	"github.com/team089/optimal-cashback/internal/model"
	"github.com/team089/optimal-cashback/internal/validation"
)

const consentPollInterval = 5 * time.Second

// Логин и банки быстрого входа для демонстрационного сценария.
const quickLogin = "team089-1"

var quickLoginBanks = []string{"Sbank", "Abank"}

// Manager держит активные сессии по логинам и управляет их жизненным циклом.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	store    Storage
	client   Backend
	logger   *zap.Logger
	duration time.Duration
	now      func() time.Time
}

// NewManager создаёт менеджер сессий поверх хранилища и клиента бэкенда.
func NewManager(store Storage, client Backend, logger *zap.Logger, duration time.Duration) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		store:    store,
		client:   client,
		logger:   logger,
		duration: duration,
		now:      time.Now,
	}
}

// Login открывает сессию логина: существующая возвращается как есть,
// сохранённая восстанавливается из хранилища вместе с прерванным анализом,
// новая начинается с экрана выбора банков.
func (m *Manager) Login(ctx context.Context, login string) (*Session, error) {
	if err := validation.ValidateLogin(login); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[login]; ok {
		return s, nil
	}

	s := newSession(login, m.store, m.client, m.logger, m.duration, m.now)
	s.resume(ctx)
	m.sessions[login] = s

	m.logger.Info("session opened", zap.String("login", login))
	return s, nil
}

// QuickLogin открывает демонстрационную сессию с предвыбранными банками
// и сразу переводит её на главный экран.
func (m *Manager) QuickLogin(ctx context.Context) (*Session, error) {
	s, err := m.Login(ctx, quickLogin)
	if err != nil {
		return nil, err
	}

	st := s.Snapshot()
	for _, name := range quickLoginBanks {
		bank, ok := model.CatalogBankByName(name)
		if !ok {
			continue
		}
		if !isChosenID(st.ChosenBanks, bank.ID) {
			if err := s.ToggleBank(ctx, bank.ID); err != nil {
				return nil, err
			}
		}
	}
	s.ConfirmBanks(ctx)

	return s, nil
}

// Get возвращает активную сессию логина.
func (m *Manager) Get(login string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[login]
	return s, ok
}

// Logout завершает сессию и удаляет все её сохранённые данные.
func (m *Manager) Logout(ctx context.Context, login string) {
	m.mu.Lock()
	s, ok := m.sessions[login]
	if ok {
		delete(m.sessions, login)
	}
	m.mu.Unlock()

	if ok {
		s.Logout(ctx)
		m.logger.Info("session closed", zap.String("login", login))
	}
}

// Close останавливает таймеры всех активных сессий.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.sessions {
		s.Close()
	}
}

// StartConsentUpdates запускает фоновое обновление статусов согласий
// для сессий с неодобренными банками.
func (m *Manager) StartConsentUpdates(ctx context.Context) {
	if m.client == nil {
		return
	}

	go func() {
		ticker := time.NewTicker(consentPollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.refreshPendingConsents(ctx)
			}
		}
	}()
}

func (m *Manager) refreshPendingConsents(ctx context.Context) {
	m.mu.Lock()
	pending := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		st := s.Snapshot()
		if len(st.ChosenBanks) > 0 && consent.HasIncomplete(st.ChosenBanks, st.BankConsents) {
			pending = append(pending, s)
		}
	}
	m.mu.Unlock()

	for _, s := range pending {
		if err := s.RefreshConsents(ctx); err != nil {
			m.logger.Warn("consent refresh failed",
				zap.String("login", s.Login()), zap.Error(err))
		}
	}
}
