// Package model содержит доменные сущности сервиса оптимального кэшбэка.
package model

// Bank описывает банк из фиксированного каталога.
// DisplayValue перезаписывается после анализа суммарным кэшбэком банка.
type Bank struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	DisplayValue string `json:"value"`
}

// Catalog возвращает фиксированный каталог поддерживаемых банков.
func Catalog() []Bank {
	return []Bank{
		{ID: 1, Name: "Abank", DisplayValue: "12 ₽"},
		{ID: 6, Name: "Ebank", DisplayValue: "18 ₽"},
		{ID: 12, Name: "Kbank", DisplayValue: "7 ₽"},
		{ID: 20, Name: "Sbank", DisplayValue: "4 ₽"},
		{ID: 21, Name: "Tbank", DisplayValue: "10 ₽"},
		{ID: 23, Name: "Vbank", DisplayValue: "44 ₽"},
		{ID: 27, Name: "Zbank", DisplayValue: "1 ₽"},
	}
}

// CatalogBankByName ищет банк каталога по имени.
func CatalogBankByName(name string) (Bank, bool) {
	for _, b := range Catalog() {
		if b.Name == name {
			return b, true
		}
	}
	return Bank{}, false
}

// Consent описывает согласие пользователя на доступ к данным одного банка.
type Consent struct {
	Approved bool `json:"approved"`
}

// ButtonState описывает состояние главной кнопки рабочего процесса.
type ButtonState string

const (
	ButtonStateWait    ButtonState = "wait"
	ButtonStateAnalyze ButtonState = "analyze"
	ButtonStateConfirm ButtonState = "confirm"
	ButtonStateCurrent ButtonState = "current"
)

// Page описывает текущий экран сессии.
type Page string

const (
	PageAuth                 Page = "auth"
	PageBankSelection        Page = "bank-selection"
	PageMain                 Page = "main"
	PageBankDetails          Page = "bank-details"
	PageCategoryTransactions Page = "category-transactions"
)

// CashbackOffer описывает предложение кэшбэка банка по одной категории,
// полученное из результатов анализа.
type CashbackOffer struct {
	ID            string  `json:"id"`
	Category      string  `json:"category"`
	Percent       float64 `json:"percent"`
	Chosen        bool    `json:"chosen"`
	TotalCashback float64 `json:"total_cb"`
	BankName      string  `json:"bank_name"`
}

// BankCashbacks содержит предложения одного банка и лимит выбора категорий.
type BankCashbacks struct {
	MaxSelections int             `json:"maxSelections"`
	BankInfo      string          `json:"bankInfo"`
	Cashbacks     []CashbackOffer `json:"cashbacks"`
}

// Transaction описывает транзакцию из истории кэшбэков, сгруппированной
// по категориям. Поставляется внешним бэкендом и не изменяется.
type Transaction struct {
	Merchant    string  `json:"merchant"`
	Date        string  `json:"date"`
	Amount      float64 `json:"amount"`
	Cashback    float64 `json:"cashback"`
	Optimal     bool    `json:"optimal"`
	PaymentBank string  `json:"paymentBank"`
	Hint        string  `json:"hint,omitempty"`
}

// CategorySummary содержит сводку по кэшбэкам одной категории.
type CategorySummary struct {
	TotalCashback float64 `json:"totalCashback"`
	TotalSpent    float64 `json:"totalSpent"`
	OptimalCount  int     `json:"optimalCount"`
	TotalCount    int     `json:"totalCount"`
}
