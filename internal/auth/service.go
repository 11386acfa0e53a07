package auth

import (
	"context"
	"errors"
	"fmt"
)

// Service implements login and password management on top of a Repository.
type Service struct {
	repo Repository
}

// NewService creates an auth service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Authenticate verifies a username/password pair and returns the account.
// Unknown usernames and wrong passwords both yield ErrInvalidCredentials;
// a dummy hash verification keeps the two paths close in timing.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*Account, error) {
	account, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			_, _ = VerifyPassword(password, dummyHash) //nolint:errcheck // timing equalization only
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("looking up account: %w", err)
	}

	ok, err := VerifyPassword(password, account.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verifying password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	return account, nil
}

// ChangePassword re-authenticates with the current password before
// storing a new hash.
func (s *Service) ChangePassword(ctx context.Context, username, current, next string) error {
	account, err := s.Authenticate(ctx, username, current)
	if err != nil {
		return err
	}

	hash, err := HashPassword(next)
	if err != nil {
		return err
	}

	return s.repo.UpdatePassword(ctx, account.ID, hash)
}

// dummyHash is a valid PHC string for an unknowable password, used to keep
// failed lookups from returning faster than failed verifications.
const dummyHash = "$argon2id$v=19$m=65536,t=3,p=1$AAAAAAAAAAAAAAAAAAAAAA$K5cZk0wF3hQyNzdXW8cBPuqqFoqzWL1bXyYqfVdT2sg"
