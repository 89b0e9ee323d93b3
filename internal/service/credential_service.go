package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"course-portal/internal/model"
	"course-portal/internal/repository"
	"course-portal/internal/util"
)

// CredentialService owns the user store. It never touches the security
// ledger.
type CredentialService struct {
	users  *repository.UserRepository
	hasher PasswordHasher
	audit  *AuditService
	now    Clock

	// decoy is verified against when a username is unknown so both failure
	// paths do the same hashing work.
	decoy string
}

func NewCredentialService(users *repository.UserRepository, hasher PasswordHasher, audit *AuditService, now Clock) (*CredentialService, error) {
	decoy, err := hasher.Hash("unknown", "unknown-password")
	if err != nil {
		return nil, fmt.Errorf("prepare credential service: %w", err)
	}

	return &CredentialService{
		users:  users,
		hasher: hasher,
		audit:  audit,
		now:    now.orDefault(),
		decoy:  decoy,
	}, nil
}

// Register validates both fields, collecting every violation, then stores
// the user. A taken username fails with model.ErrUserAlreadyExists.
func (s *CredentialService) Register(ctx context.Context, username string, password string) (model.User, error) {
	if err := util.ValidateCredentials(username, password); err != nil {
		return model.User{}, err
	}

	if _, found, err := s.Lookup(ctx, username); err != nil {
		return model.User{}, err
	} else if found {
		return model.User{}, model.ErrUserAlreadyExists
	}

	hash, err := s.hasher.Hash(username, password)
	if err != nil {
		return model.User{}, err
	}

	user := model.User{
		Username:     username,
		PasswordHash: hash,
		Role:         model.RoleStudent,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return model.User{}, err
	}

	s.audit.Record(ctx, model.EventRegister, fmt.Sprintf("Account created for %s", username))
	slog.Info("user registered", "username", username)

	return user, nil
}

func (s *CredentialService) Lookup(ctx context.Context, username string) (model.User, bool, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, false, nil
	}
	if err != nil {
		return model.User{}, false, err
	}
	return user, true, nil
}

// Verify reports whether password matches the stored hash. Unknown users
// verify false after the same amount of hashing as a wrong password.
func (s *CredentialService) Verify(ctx context.Context, username string, password string) (bool, error) {
	user, found, err := s.Lookup(ctx, username)
	if err != nil {
		return false, err
	}
	if !found {
		s.hasher.Verify(username, password, s.decoy)
		return false, nil
	}
	return s.hasher.Verify(username, password, user.PasswordHash), nil
}
