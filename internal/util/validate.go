package util

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"course-portal/internal/model"
)

const (
	UsernameMinLength = 3
	UsernameMaxLength = 32
	PasswordMinLength = 8
)

const (
	MsgUsernameLength     = "Username must be between 3 and 32 characters."
	MsgUsernameCharset    = "Username may only contain letters, numbers, dots, underscores, and hyphens."
	MsgPasswordLength     = "Password must be at least 8 characters."
	MsgPasswordWhitespace = "Password must not start or end with whitespace."
	MsgPasswordLower      = "Password must include a lowercase letter."
	MsgPasswordUpper      = "Password must include an uppercase letter."
	MsgPasswordDigit      = "Password must include a number."
	MsgPasswordSymbol     = "Password must include a symbol."
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]*$`)

// ValidateUsername reports every rule the username breaks. Matching is
// exact: callers trim input before validating.
func ValidateUsername(username string) model.FieldValidation {
	problems := make([]string, 0, 2)

	n := utf8.RuneCountInString(username)
	if n < UsernameMinLength || n > UsernameMaxLength {
		problems = append(problems, MsgUsernameLength)
	}
	if !usernamePattern.MatchString(username) {
		problems = append(problems, MsgUsernameCharset)
	}

	return model.FieldValidation{Valid: len(problems) == 0, Errors: problems}
}

// ValidatePassword reports every rule the password breaks.
func ValidatePassword(password string) model.FieldValidation {
	problems := make([]string, 0, 6)

	if utf8.RuneCountInString(password) < PasswordMinLength {
		problems = append(problems, MsgPasswordLength)
	}
	if password != "" && strings.TrimSpace(password) != password {
		problems = append(problems, MsgPasswordWhitespace)
	}

	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case !unicode.IsSpace(r) && !unicode.IsLetter(r):
			symbol = true
		}
	}

	if !lower {
		problems = append(problems, MsgPasswordLower)
	}
	if !upper {
		problems = append(problems, MsgPasswordUpper)
	}
	if !digit {
		problems = append(problems, MsgPasswordDigit)
	}
	if !symbol {
		problems = append(problems, MsgPasswordSymbol)
	}

	return model.FieldValidation{Valid: len(problems) == 0, Errors: problems}
}

// ValidateCredentials runs both validators and folds every violation into a
// single error, or returns nil.
func ValidateCredentials(username string, password string) error {
	u := ValidateUsername(username)
	p := ValidatePassword(password)
	if u.Valid && p.Valid {
		return nil
	}

	problems := make([]string, 0, len(u.Errors)+len(p.Errors))
	problems = append(problems, u.Errors...)
	problems = append(problems, p.Errors...)
	return &model.ValidationError{Problems: problems}
}
