package model

import (
	"errors"
	"strings"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")

	ErrUnauthorized = errors.New("unauthorized")

	ErrInvalidInput = errors.New("invalid input")
)

// ValidationError carries every violated registration rule so the caller
// can show them together.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, " ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}
