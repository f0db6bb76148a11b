// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"unicode"
)

const maxLoginLength = 64

// ErrInvalidLogin возвращается для логина недопустимого формата.
var ErrInvalidLogin = errors.New("invalid login")

// ValidateLogin проверяет формат логина: непустой, не длиннее 64 символов,
// из латинских букв, цифр и разделителей "-", "_", ".".
func ValidateLogin(login string) error {
	if login == "" || len(login) > maxLoginLength {
		return ErrInvalidLogin
	}

	for _, ch := range login {
		switch {
		case unicode.IsLetter(ch) && ch < unicode.MaxASCII:
		case unicode.IsDigit(ch):
		case ch == '-' || ch == '_' || ch == '.':
		default:
			return ErrInvalidLogin
		}
	}

	return nil
}
