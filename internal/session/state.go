// Package session реализует рабочий процесс подбора оптимального кэшбэка:
// выбор банков, одобрение согласий, анализ трат и подтверждение категорий.
package session

import (
	"github.com/team089/optimal-cashback/internal/model"
)

// Ключи полей состояния в хранилище. Список stateKeys разделяется путями
// сохранения и очистки: новое сохраняемое поле добавляется в обе точки
// через него.
const (
	keyUserLogin            = "userLogin"
	keyCurrentPage          = "currentPage"
	keySelectedBank         = "selectedBank"
	keySelectedCategory     = "selectedCategory"
	keyChosenBanks          = "chosenBanks"
	keySelectedCashbacks    = "selectedCashbacks"
	keyBankConsents         = "bankConsents"
	keyExpandedBanks        = "expandedBanks"
	keyMainButtonState      = "mainButtonState"
	keyIsAnalyzed           = "isAnalyzed"
	keyIsAnalyzing          = "isAnalyzingForConfirmation"
	keyAnalysisStartTime    = "analysisStartTime"
	keyBankCashbacks        = "BANK_CASHBACKS"
	keyCashbackTransactions = "cashbackTransactions"
)

var stateKeys = []string{
	keyUserLogin,
	keyCurrentPage,
	keySelectedBank,
	keySelectedCategory,
	keyChosenBanks,
	keySelectedCashbacks,
	keyBankConsents,
	keyExpandedBanks,
	keyMainButtonState,
	keyIsAnalyzed,
	keyIsAnalyzing,
	keyAnalysisStartTime,
	keyBankCashbacks,
	keyCashbackTransactions,
}

// State содержит полное состояние рабочего процесса одной сессии.
// Сессия владеет состоянием единолично, хранилище — пассивное зеркало.
type State struct {
	Login                      string                             `json:"login"`
	CurrentPage                model.Page                         `json:"currentPage"`
	SelectedBank               *model.Bank                        `json:"selectedBank,omitempty"`
	SelectedCategory           string                             `json:"selectedCategory,omitempty"`
	ChosenBanks                []model.Bank                       `json:"chosenBanks"`
	SelectedCashbacks          map[string][]string                `json:"selectedCashbacks"`
	BankConsents               map[int]model.Consent              `json:"bankConsents"`
	ExpandedBanks              map[int]bool                       `json:"expandedBanks"`
	MainButtonState            model.ButtonState                  `json:"mainButtonState"`
	IsAnalyzed                 bool                               `json:"isAnalyzed"`
	IsAnalyzingForConfirmation bool                               `json:"isAnalyzingForConfirmation"`
	AnalysisStartTime          int64                              `json:"analysisStartTime,omitempty"`
	BankCashbacks              map[string]model.BankCashbacks     `json:"bankCashbacks"`
	CashbackTransactions       map[string][]model.Transaction     `json:"cashbackTransactions"`
}

func newState(login string) State {
	return State{
		Login:                login,
		CurrentPage:          model.PageBankSelection,
		ChosenBanks:          []model.Bank{},
		SelectedCashbacks:    map[string][]string{},
		BankConsents:         map[int]model.Consent{},
		ExpandedBanks:        map[int]bool{},
		MainButtonState:      model.ButtonStateWait,
		BankCashbacks:        map[string]model.BankCashbacks{},
		CashbackTransactions: map[string][]model.Transaction{},
	}
}

// clone возвращает глубокую копию состояния для безопасной выдачи наружу.
func (s State) clone() State {
	cp := s

	if s.SelectedBank != nil {
		b := *s.SelectedBank
		cp.SelectedBank = &b
	}

	cp.ChosenBanks = append([]model.Bank(nil), s.ChosenBanks...)

	cp.SelectedCashbacks = make(map[string][]string, len(s.SelectedCashbacks))
	for k, v := range s.SelectedCashbacks {
		cp.SelectedCashbacks[k] = append([]string(nil), v...)
	}

	cp.BankConsents = make(map[int]model.Consent, len(s.BankConsents))
	for k, v := range s.BankConsents {
		cp.BankConsents[k] = v
	}

	cp.ExpandedBanks = make(map[int]bool, len(s.ExpandedBanks))
	for k, v := range s.ExpandedBanks {
		cp.ExpandedBanks[k] = v
	}

	cp.BankCashbacks = make(map[string]model.BankCashbacks, len(s.BankCashbacks))
	for k, v := range s.BankCashbacks {
		v.Cashbacks = append([]model.CashbackOffer(nil), v.Cashbacks...)
		cp.BankCashbacks[k] = v
	}

	cp.CashbackTransactions = make(map[string][]model.Transaction, len(s.CashbackTransactions))
	for k, v := range s.CashbackTransactions {
		cp.CashbackTransactions[k] = append([]model.Transaction(nil), v...)
	}

	return cp
}
