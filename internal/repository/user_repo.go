package repository

import (
	"context"
	"fmt"
	"sync"

	"course-portal/internal/model"
	"course-portal/internal/storage"
)

const usersKey = "users"

// UserRepository persists the credential store as one ordered list, in
// registration order. Usernames match exactly and case-sensitively.
type UserRepository struct {
	store storage.Store
	mu    sync.Mutex
}

func NewUserRepository(store storage.Store) *UserRepository {
	return &UserRepository{store: store}
}

func (r *UserRepository) List(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if _, err := storage.LoadJSON(ctx, r.store, usersKey, &users); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if users == nil {
		users = []model.User{}
	}
	return users, nil
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (model.User, error) {
	users, err := r.List(ctx)
	if err != nil {
		return model.User{}, err
	}

	for _, u := range users {
		if u.Username == username {
			return u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

// Create appends u, failing with ErrUserAlreadyExists when the username is
// taken.
func (r *UserRepository) Create(ctx context.Context, u model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.List(ctx)
	if err != nil {
		return err
	}

	for _, existing := range users {
		if existing.Username == u.Username {
			return model.ErrUserAlreadyExists
		}
	}

	users = append(users, u)
	if err := storage.SaveJSON(ctx, r.store, usersKey, users); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}
