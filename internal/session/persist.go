package session

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/team089/optimal-cashback/internal/model"
)

func storageKey(login, field string) string {
	return login + ":" + field
}

// persistLocked сохраняет состояние в хранилище по одному ключу на поле.
// Атомарность между полями не гарантируется: прерывание процесса может
// оставить частичную запись, загрузка это переносит.
func (s *Session) persistLocked(ctx context.Context) {
	st := &s.state
	login := st.Login

	s.saveJSON(ctx, storageKey(login, keyUserLogin), st.Login)
	s.saveJSON(ctx, storageKey(login, keyCurrentPage), st.CurrentPage)
	s.saveJSON(ctx, storageKey(login, keySelectedBank), st.SelectedBank)
	s.saveJSON(ctx, storageKey(login, keySelectedCategory), st.SelectedCategory)
	s.saveJSON(ctx, storageKey(login, keyChosenBanks), st.ChosenBanks)
	s.saveJSON(ctx, storageKey(login, keySelectedCashbacks), st.SelectedCashbacks)
	s.saveJSON(ctx, storageKey(login, keyBankConsents), st.BankConsents)
	s.saveJSON(ctx, storageKey(login, keyExpandedBanks), st.ExpandedBanks)
	s.saveJSON(ctx, storageKey(login, keyMainButtonState), st.MainButtonState)
	s.saveJSON(ctx, storageKey(login, keyIsAnalyzed), st.IsAnalyzed)
	s.saveJSON(ctx, storageKey(login, keyIsAnalyzing), st.IsAnalyzingForConfirmation)
	s.saveJSON(ctx, storageKey(login, keyBankCashbacks), st.BankCashbacks)
	s.saveJSON(ctx, storageKey(login, keyCashbackTransactions), st.CashbackTransactions)

	// Время начала анализа хранится только пока анализ идёт.
	if st.AnalysisStartTime != 0 {
		s.saveJSON(ctx, storageKey(login, keyAnalysisStartTime), st.AnalysisStartTime)
	} else {
		s.store.Remove(ctx, storageKey(login, keyAnalysisStartTime))
	}
}

func (s *Session) saveJSON(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("marshal state field failed", zap.String("key", key), zap.Error(err))
		return
	}
	s.store.Save(ctx, key, data)
}

// loadJSON читает поле из хранилища. Отсутствующее или некорректное значение
// оставляет значение по умолчанию, некорректное — с предупреждением.
func (s *Session) loadJSON(ctx context.Context, key string, dst any) {
	data, ok := s.store.Load(ctx, key)
	if !ok {
		return
	}
	if err := json.Unmarshal(data, dst); err != nil {
		s.logger.Warn("malformed state field, using default", zap.String("key", key), zap.Error(err))
	}
}

// restoreLocked загружает состояние из хранилища. Каждое поле читается
// независимо, чтобы пережить частичную запись предыдущей сессии.
// Возвращает true, если по логину найдена сохранённая сессия.
func (s *Session) restoreLocked(ctx context.Context) bool {
	login := s.state.Login

	var savedLogin string
	s.loadJSON(ctx, storageKey(login, keyUserLogin), &savedLogin)
	if savedLogin == "" {
		return false
	}

	st := newState(login)
	st.CurrentPage = model.PageMain

	s.loadJSON(ctx, storageKey(login, keyCurrentPage), &st.CurrentPage)
	s.loadJSON(ctx, storageKey(login, keySelectedBank), &st.SelectedBank)
	s.loadJSON(ctx, storageKey(login, keySelectedCategory), &st.SelectedCategory)
	s.loadJSON(ctx, storageKey(login, keyChosenBanks), &st.ChosenBanks)
	s.loadJSON(ctx, storageKey(login, keySelectedCashbacks), &st.SelectedCashbacks)
	s.loadJSON(ctx, storageKey(login, keyBankConsents), &st.BankConsents)
	s.loadJSON(ctx, storageKey(login, keyExpandedBanks), &st.ExpandedBanks)
	s.loadJSON(ctx, storageKey(login, keyIsAnalyzed), &st.IsAnalyzed)
	s.loadJSON(ctx, storageKey(login, keyIsAnalyzing), &st.IsAnalyzingForConfirmation)
	s.loadJSON(ctx, storageKey(login, keyAnalysisStartTime), &st.AnalysisStartTime)
	s.loadJSON(ctx, storageKey(login, keyBankCashbacks), &st.BankCashbacks)
	s.loadJSON(ctx, storageKey(login, keyCashbackTransactions), &st.CashbackTransactions)

	var button model.ButtonState
	s.loadJSON(ctx, storageKey(login, keyMainButtonState), &button)
	switch button {
	case model.ButtonStateCurrent, model.ButtonStateConfirm, model.ButtonStateAnalyze:
		st.MainButtonState = button
	default:
		if st.IsAnalyzed {
			st.MainButtonState = model.ButtonStateConfirm
		} else {
			st.MainButtonState = model.ButtonStateAnalyze
		}
	}

	s.sanitize(&st)
	s.state = st
	return true
}

// sanitize восстанавливает инварианты после загрузки: nil-коллекции
// заменяются пустыми, переполненный выбор категорий сбрасывается.
func (s *Session) sanitize(st *State) {
	if st.ChosenBanks == nil {
		st.ChosenBanks = []model.Bank{}
	}
	if st.SelectedCashbacks == nil {
		st.SelectedCashbacks = map[string][]string{}
	}
	if st.BankConsents == nil {
		st.BankConsents = map[int]model.Consent{}
	}
	if st.ExpandedBanks == nil {
		st.ExpandedBanks = map[int]bool{}
	}
	if st.BankCashbacks == nil {
		st.BankCashbacks = map[string]model.BankCashbacks{}
	}
	if st.CashbackTransactions == nil {
		st.CashbackTransactions = map[string][]model.Transaction{}
	}

	for bankName, selected := range st.SelectedCashbacks {
		bc, ok := st.BankCashbacks[bankName]
		if !ok {
			continue
		}
		if len(selected) > bc.MaxSelections {
			s.logger.Warn("selected cashbacks exceed limit, resetting",
				zap.String("bank", bankName),
				zap.Int("selected", len(selected)),
				zap.Int("max", bc.MaxSelections))
			st.SelectedCashbacks[bankName] = []string{}
		}
	}
}

// clearStorageLocked удаляет каждый известный ключ состояния по отдельности.
func (s *Session) clearStorageLocked(ctx context.Context) {
	for _, key := range stateKeys {
		s.store.Remove(ctx, storageKey(s.state.Login, key))
	}
}
