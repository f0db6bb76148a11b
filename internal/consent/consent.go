// Package consent содержит чистые функции вычисления состояния согласий банков.
package consent

import "github.com/team089/optimal-cashback/internal/model"

// BankState описывает вычисленное состояние согласий одного банка.
type BankState string

const (
	StateNotApproved BankState = "not_approved"
	StateApproved    BankState = "approved"
)

// State вычисляет состояние банка по записям согласий.
// Банк считается одобренным только при наличии записи с approved=true.
func State(bank model.Bank, consents map[int]model.Consent) BankState {
	c, ok := consents[bank.ID]
	if !ok || !c.Approved {
		return StateNotApproved
	}
	return StateApproved
}

// HasIncomplete сообщает, есть ли среди выбранных банков хотя бы один
// без одобренных согласий.
func HasIncomplete(banks []model.Bank, consents map[int]model.Consent) bool {
	for _, b := range banks {
		if State(b, consents) != StateApproved {
			return true
		}
	}
	return false
}

// AllValid сообщает, что список банков непуст и все банки одобрены.
func AllValid(banks []model.Bank, consents map[int]model.Consent) bool {
	if len(banks) == 0 {
		return false
	}
	return !HasIncomplete(banks, consents)
}
