package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/team089/optimal-cashback/internal/backend"
	"github.com/team089/optimal-cashback/internal/consent"
	"github.com/team089/optimal-cashback/internal/model"
)

// DefaultAnalysisDuration — время ожидания результатов анализа по умолчанию.
const DefaultAnalysisDuration = 5 * time.Second

// ErrBanksNotReady возвращается при запуске анализа без одобренных согласий.
var (
	ErrBanksNotReady = errors.New("not all bank consents approved")
	// ErrUnknownBank возвращается для банка, отсутствующего в каталоге или среди выбранных.
	ErrUnknownBank = errors.New("unknown bank")
	// ErrConsentNotApproved возвращается при обращении к банку без одобренных согласий.
	ErrConsentNotApproved = errors.New("bank consent not approved")
	// ErrNotAnalyzed возвращается при обращении к данным банка до завершения анализа.
	ErrNotAnalyzed = errors.New("analysis not completed")
	// ErrNotReadyToConfirm возвращается при подтверждении кэшбэков вне состояния confirm.
	ErrNotReadyToConfirm = errors.New("cashbacks are not ready to confirm")
)

// Session владеет состоянием рабочего процесса одного логина.
// Все мутации проходят через мьютекс; каждое изменение зеркалируется
// в хранилище.
type Session struct {
	mu          sync.Mutex
	state       State
	analysisErr string

	store    Storage
	client   Backend
	logger   *zap.Logger
	duration time.Duration
	now      func() time.Time

	timer  *time.Timer
	closed bool
}

// Storage описывает контракт key-value хранилища, используемый сессией.
type Storage interface {
	Load(ctx context.Context, key string) ([]byte, bool)
	Save(ctx context.Context, key string, value []byte)
	Remove(ctx context.Context, key string)
}

// Backend описывает контракт аналитического бэкенда, используемый сессией.
type Backend interface {
	SelectBanks(ctx context.Context, login string, bankNames []string) ([]backend.BankStatus, error)
	AnalysisResults(ctx context.Context, login string) ([]model.CashbackOffer, error)
	ConfirmCashbacks(ctx context.Context, login string, offers []backend.ConfirmedOffer) (map[string][]model.Transaction, error)
}

func newSession(login string, store Storage, client Backend, logger *zap.Logger, duration time.Duration, now func() time.Time) *Session {
	if duration <= 0 {
		duration = DefaultAnalysisDuration
	}
	if now == nil {
		now = time.Now
	}
	return &Session{
		state:    newState(login),
		store:    store,
		client:   client,
		logger:   logger,
		duration: duration,
		now:      now,
	}
}

// Login возвращает логин владельца сессии.
func (s *Session) Login() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Login
}

// Snapshot возвращает копию текущего состояния.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// LastAnalysisError возвращает текст последней ошибки анализа для показа
// пользователю. Поле не сохраняется и сбрасывается при новом запуске анализа.
func (s *Session) LastAnalysisError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analysisErr
}

// Close останавливает отложенный таймер анализа. Незавершённый анализ
// остаётся в сохранённом состоянии и возобновляется при следующем входе.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.stopTimerLocked()
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// resume восстанавливает состояние из хранилища и, если анализ был прерван
// перезапуском, достраивает таймер ожидания по сохранённому времени старта.
func (s *Session) resume(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.restoreLocked(ctx) {
		s.persistLocked(ctx)
		return
	}

	s.resumeAnalysisLocked(ctx)
	s.persistLocked(ctx)
}

func (s *Session) resumeAnalysisLocked(ctx context.Context) {
	st := &s.state

	if !st.IsAnalyzingForConfirmation {
		st.AnalysisStartTime = 0
		return
	}
	if st.AnalysisStartTime == 0 {
		st.IsAnalyzingForConfirmation = false
		return
	}

	elapsed := time.Duration(s.now().UnixMilli()-st.AnalysisStartTime) * time.Millisecond
	remaining := s.duration - elapsed
	if remaining <= 0 {
		// Анализ должен был завершиться во время простоя процесса.
		st.IsAnalyzingForConfirmation = false
		st.IsAnalyzed = true
		st.MainButtonState = model.ButtonStateConfirm
		st.AnalysisStartTime = 0
		return
	}

	s.logger.Info("resuming analysis wait",
		zap.String("login", st.Login),
		zap.Duration("remaining", remaining))
	s.scheduleCompletionLocked(remaining)
}

// ToggleBank добавляет банк в выбранные или убирает его. Удаление каскадно
// чистит согласия, выбранные кэшбэки и признак раскрытия банка.
func (s *Session) ToggleBank(ctx context.Context, bankID int) error {
	bank, ok := catalogBankByID(bankID)
	if !ok {
		return ErrUnknownBank
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := &s.state

	idx := -1
	for i, b := range st.ChosenBanks {
		if b.ID == bankID {
			idx = i
			break
		}
	}

	if idx >= 0 {
		removed := st.ChosenBanks[idx]
		st.ChosenBanks = append(st.ChosenBanks[:idx], st.ChosenBanks[idx+1:]...)
		delete(st.BankConsents, removed.ID)
		delete(st.SelectedCashbacks, removed.Name)
		delete(st.ExpandedBanks, removed.ID)
	} else {
		st.ChosenBanks = append(st.ChosenBanks, bank)
		st.BankConsents[bank.ID] = model.Consent{Approved: false}
	}

	s.maybeStartAnalysisLocked()
	s.persistLocked(ctx)
	return nil
}

// ApproveConsent одобряет согласия выбранного банка (подтверждение
// в приложении банка).
func (s *Session) ApproveConsent(ctx context.Context, bankID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &s.state
	if !isChosenID(st.ChosenBanks, bankID) {
		return ErrUnknownBank
	}

	st.BankConsents[bankID] = model.Consent{Approved: true}

	s.maybeStartAnalysisLocked()
	s.persistLocked(ctx)
	return nil
}

// RefreshConsents запрашивает статусы подключения банков у бэкенда
// и обновляет записи согласий.
func (s *Session) RefreshConsents(ctx context.Context) error {
	s.mu.Lock()
	login := s.state.Login
	names := make([]string, 0, len(s.state.ChosenBanks))
	for _, b := range s.state.ChosenBanks {
		names = append(names, b.Name)
	}
	s.mu.Unlock()

	if len(names) == 0 || s.client == nil {
		return nil
	}

	statuses, err := s.client.SelectBanks(ctx, login, names)
	if err != nil {
		return fmt.Errorf("select banks: %w", err)
	}

	s.ApplyConsentStatuses(ctx, statuses)
	return nil
}

// ApplyConsentStatuses применяет статусы банков, полученные от бэкенда.
func (s *Session) ApplyConsentStatuses(ctx context.Context, statuses []backend.BankStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &s.state
	for _, status := range statuses {
		for _, b := range st.ChosenBanks {
			if strings.EqualFold(b.Name, status.BankName) {
				st.BankConsents[b.ID] = model.Consent{Approved: status.Status == backend.StatusAuthorized}
				break
			}
		}
	}

	s.maybeStartAnalysisLocked()
	s.persistLocked(ctx)
}

// ConfirmBanks завершает выбор банков и переводит сессию на главный экран.
func (s *Session) ConfirmBanks(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.CurrentPage = model.PageMain
	s.maybeStartAnalysisLocked()
	s.persistLocked(ctx)
}

// RequestAnalysis запускает анализ по явному действию пользователя.
// Повторный вызов после неудачного анализа перезапускает ожидание.
func (s *Session) RequestAnalysis(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &s.state
	if !consent.AllValid(st.ChosenBanks, st.BankConsents) {
		return ErrBanksNotReady
	}

	switch st.MainButtonState {
	case model.ButtonStateWait:
		s.startAnalysisLocked()
	case model.ButtonStateAnalyze:
		if !st.IsAnalyzingForConfirmation {
			s.startAnalysisLocked()
		}
	}

	s.persistLocked(ctx)
	return nil
}

// maybeStartAnalysisLocked выполняет переход wait → analyze, как только
// все выбранные банки одобрены. Вызывается после каждой мутации согласий.
func (s *Session) maybeStartAnalysisLocked() {
	st := &s.state
	if st.MainButtonState != model.ButtonStateWait {
		return
	}
	if !consent.AllValid(st.ChosenBanks, st.BankConsents) {
		return
	}
	s.startAnalysisLocked()
}

func (s *Session) startAnalysisLocked() {
	st := &s.state
	st.MainButtonState = model.ButtonStateAnalyze
	st.IsAnalyzingForConfirmation = true
	st.AnalysisStartTime = s.now().UnixMilli()
	s.analysisErr = ""
	s.scheduleCompletionLocked(s.duration)
}

func (s *Session) scheduleCompletionLocked(d time.Duration) {
	s.stopTimerLocked()
	s.timer = time.AfterFunc(d, func() {
		s.completeAnalysis(context.Background())
	})
}

// completeAnalysis забирает результаты анализа и выполняет переход
// analyze → confirm. Ошибка запроса оставляет кнопку в analyze для повтора.
func (s *Session) completeAnalysis(ctx context.Context) {
	s.mu.Lock()
	if s.closed || !s.state.IsAnalyzingForConfirmation {
		s.mu.Unlock()
		return
	}
	login := s.state.Login
	client := s.client
	s.mu.Unlock()

	var (
		offers []model.CashbackOffer
		err    error
	)
	if client != nil {
		offers, err = client.AnalysisResults(ctx, login)
	} else {
		err = errors.New("backend client not configured")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	if err != nil {
		s.logger.Error("fetch analysis results failed",
			zap.String("login", login), zap.Error(err))
		s.analysisErr = "Не удалось получить результаты анализа. Пожалуйста, попробуйте снова."
		s.state.IsAnalyzingForConfirmation = false
		s.state.AnalysisStartTime = 0
		s.persistLocked(ctx)
		return
	}

	s.applyAnalysisLocked(offers)
	s.persistLocked(ctx)
}

// applyAnalysisLocked группирует предложения по банкам, выставляет
// рекомендованный выбор и пересчитывает отображаемый кэшбэк банков.
func (s *Session) applyAnalysisLocked(offers []model.CashbackOffer) {
	st := &s.state

	grouped := make(map[string]model.BankCashbacks)
	for _, offer := range offers {
		bc := grouped[offer.BankName]
		if bc.BankInfo == "" {
			bc.BankInfo = fmt.Sprintf("Зарабатывайте вместе с %s!", offer.BankName)
		}
		if offer.Chosen {
			bc.MaxSelections++
		}
		bc.Cashbacks = append(bc.Cashbacks, offer)
		grouped[offer.BankName] = bc
	}

	selected := make(map[string][]string, len(grouped))
	for bankName, bc := range grouped {
		chosen := []string{}
		for _, offer := range bc.Cashbacks {
			if offer.Chosen {
				chosen = append(chosen, offer.ID)
			}
		}
		selected[bankName] = chosen
	}

	for i, bank := range st.ChosenBanks {
		bc, ok := grouped[bank.Name]
		if !ok {
			continue
		}
		var total float64
		for _, offer := range bc.Cashbacks {
			if offer.Chosen {
				total += offer.TotalCashback
			}
		}
		st.ChosenBanks[i].DisplayValue = fmt.Sprintf("%.0f ₽", total)
	}

	st.BankCashbacks = grouped
	st.SelectedCashbacks = selected
	st.IsAnalyzed = true
	st.IsAnalyzingForConfirmation = false
	st.AnalysisStartTime = 0
	st.MainButtonState = model.ButtonStateConfirm
	s.analysisErr = ""
}

// ToggleCashback переключает выбор предложения. После подтверждения выбор
// заморожен; добавление сверх лимита банка молча игнорируется.
func (s *Session) ToggleCashback(ctx context.Context, bankName, offerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &s.state
	if st.MainButtonState == model.ButtonStateCurrent {
		return
	}

	bc, ok := st.BankCashbacks[bankName]
	if !ok {
		return
	}

	current := st.SelectedCashbacks[bankName]
	for i, id := range current {
		if id == offerID {
			st.SelectedCashbacks[bankName] = append(current[:i], current[i+1:]...)
			s.persistLocked(ctx)
			return
		}
	}

	if len(current) >= bc.MaxSelections {
		return
	}

	st.SelectedCashbacks[bankName] = append(current, offerID)
	s.persistLocked(ctx)
}

// ToggleExpanded переключает признак раскрытия карточки банка.
func (s *Session) ToggleExpanded(ctx context.Context, bankID int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &s.state
	if st.ExpandedBanks[bankID] {
		delete(st.ExpandedBanks, bankID)
	} else {
		st.ExpandedBanks[bankID] = true
	}
	s.persistLocked(ctx)
}

// SelectBank открывает экран банка. Доступен только для одобренного банка
// после завершения анализа.
func (s *Session) SelectBank(ctx context.Context, bankID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &s.state

	var bank *model.Bank
	for i := range st.ChosenBanks {
		if st.ChosenBanks[i].ID == bankID {
			bank = &st.ChosenBanks[i]
			break
		}
	}
	if bank == nil {
		return ErrUnknownBank
	}

	if consent.State(*bank, st.BankConsents) != consent.StateApproved {
		return ErrConsentNotApproved
	}
	if !st.IsAnalyzed {
		return ErrNotAnalyzed
	}

	b := *bank
	st.SelectedBank = &b
	st.CurrentPage = model.PageBankDetails
	s.persistLocked(ctx)
	return nil
}

// SelectCategory открывает историю транзакций категории.
func (s *Session) SelectCategory(ctx context.Context, category string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.SelectedCategory = category
	s.state.CurrentPage = model.PageCategoryTransactions
	s.persistLocked(ctx)
}

// BackToMain возвращает сессию на главный экран.
func (s *Session) BackToMain(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.CurrentPage = model.PageMain
	s.state.SelectedBank = nil
	s.state.SelectedCategory = ""
	s.persistLocked(ctx)
}

// ConfirmCashbacks отправляет итоговый выбор на бэкенд и выполняет переход
// confirm → current. При ошибке запроса состояние не меняется.
func (s *Session) ConfirmCashbacks(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &s.state
	if st.MainButtonState != model.ButtonStateConfirm {
		return ErrNotReadyToConfirm
	}

	offers := make([]backend.ConfirmedOffer, 0)
	for _, bankName := range sortedBankNames(st.BankCashbacks) {
		bc := st.BankCashbacks[bankName]
		selected := st.SelectedCashbacks[bankName]
		for _, offer := range bc.Cashbacks {
			choosen := "no"
			for _, id := range selected {
				if id == offer.ID {
					choosen = "yes"
					break
				}
			}
			name := offer.BankName
			if name == "" {
				name = bankName
			}
			offers = append(offers, backend.ConfirmedOffer{
				BankName: name,
				Category: offer.Category,
				Percent:  offer.Percent,
				Choosen:  choosen,
				TotalCB:  offer.TotalCashback,
			})
		}
	}

	if s.client == nil {
		return fmt.Errorf("confirm cashbacks: backend client not configured")
	}

	transactions, err := s.client.ConfirmCashbacks(ctx, st.Login, offers)
	if err != nil {
		return fmt.Errorf("confirm cashbacks: %w", err)
	}

	if transactions == nil {
		transactions = map[string][]model.Transaction{}
	}
	st.CashbackTransactions = transactions
	st.MainButtonState = model.ButtonStateCurrent
	s.persistLocked(ctx)
	return nil
}

// Logout сбрасывает состояние сессии и удаляет все сохранённые ключи.
func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopTimerLocked()
	s.clearStorageLocked(ctx)
	s.state = newState(s.state.Login)
	s.state.CurrentPage = model.PageAuth
	s.analysisErr = ""
	s.closed = true
}

// BestBankForCategory возвращает банк с наибольшим процентом кэшбэка
// по категории. Второй результат ложен, если категорию не предлагает
// ни один банк.
func (s *Session) BestBankForCategory(category string) (string, float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		bestBank string
		bestRate float64
		found    bool
	)
	for _, bankName := range sortedBankNames(s.state.BankCashbacks) {
		for _, offer := range s.state.BankCashbacks[bankName].Cashbacks {
			if offer.Category != category {
				continue
			}
			if !found || offer.Percent > bestRate {
				found = true
				bestRate = offer.Percent
				bestBank = offer.BankName
				if bestBank == "" {
					bestBank = bankName
				}
			}
		}
	}
	return bestBank, bestRate, found
}

// AllCategories возвращает все категории из предложений банков без повторов.
func (s *Session) AllCategories() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{})
	categories := []string{}
	for _, bankName := range sortedBankNames(s.state.BankCashbacks) {
		for _, offer := range s.state.BankCashbacks[bankName].Cashbacks {
			if _, ok := seen[offer.Category]; ok {
				continue
			}
			seen[offer.Category] = struct{}{}
			categories = append(categories, offer.Category)
		}
	}
	return categories
}

// CurrentIncome возвращает суммарный заработанный кэшбэк по всем транзакциям.
func (s *Session) CurrentIncome() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total float64
	for _, transactions := range s.state.CashbackTransactions {
		for _, t := range transactions {
			total += t.Cashback
		}
	}
	return total
}

// PredictedIncome возвращает прогноз дохода от текущих трат.
func (s *Session) PredictedIncome() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var amount float64
	for _, transactions := range s.state.CashbackTransactions {
		for _, t := range transactions {
			amount += t.Amount
		}
	}
	return amount * 0.7
}

// CategorySummaries возвращает сводки кэшбэков по категориям для истории.
func (s *Session) CategorySummaries() map[string]model.CategorySummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	summaries := make(map[string]model.CategorySummary, len(s.state.CashbackTransactions))
	for category, transactions := range s.state.CashbackTransactions {
		var summary model.CategorySummary
		for _, t := range transactions {
			summary.TotalCashback += t.Cashback
			summary.TotalSpent += t.Amount
			if t.Optimal {
				summary.OptimalCount++
			}
		}
		summary.TotalCount = len(transactions)
		summaries[category] = summary
	}
	return summaries
}

// TransactionsForCategory возвращает транзакции одной категории.
func (s *Session) TransactionsForCategory(category string) []model.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]model.Transaction(nil), s.state.CashbackTransactions[category]...)
}

func catalogBankByID(id int) (model.Bank, bool) {
	for _, b := range model.Catalog() {
		if b.ID == id {
			return b, true
		}
	}
	return model.Bank{}, false
}

func isChosenID(banks []model.Bank, id int) bool {
	for _, b := range banks {
		if b.ID == id {
			return true
		}
	}
	return false
}

// sortedBankNames возвращает имена банков в устойчивом порядке,
// чтобы разрешение ничьих и порядок выдачи были детерминированными.
func sortedBankNames(m map[string]model.BankCashbacks) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
