package auth

import (
	"context"
	"errors"
	"strings"
)

// Service provides account registration and credential checks on top of a
// UserStore. Token issuance is the Tokens service's job; handlers combine
// the two.
type Service struct {
	users UserStore
}

// NewService constructs the account service.
func NewService(users UserStore) *Service {
	return &Service{users: users}
}

// Register creates a new account. Duplicate username or email yields
// ErrConflict.
func (s *Service) Register(ctx context.Context, username, email, password string) (*User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(strings.ToLower(email))
	if username == "" || password == "" {
		return nil, ErrInvalidInput
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	u := &User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login verifies credentials and returns the matching user. Unknown
// usernames and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := VerifyPassword(u.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// Resolve loads the principal for a validated subject id. Tokens carry only
// the subject; role flags always come from the store.
func (s *Service) Resolve(ctx context.Context, subjectID string) (Principal, error) {
	u, err := s.users.Find(ctx, subjectID)
	if err != nil {
		return Principal{}, err
	}
	return PrincipalOf(u), nil
}

// EnsureAdmin creates the bootstrap admin account when the username is not
// taken. Used at startup; a no-op when the account already exists.
func (s *Service) EnsureAdmin(ctx context.Context, username, email, password string) error {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil
	}
	if _, err := s.users.FindByUsername(ctx, username); err == nil {
		return nil
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	err = s.users.Create(ctx, &User{
		Username:     strings.TrimSpace(username),
		Email:        strings.TrimSpace(strings.ToLower(email)),
		PasswordHash: hash,
		IsStaff:      true,
		IsSuperuser:  true,
	})
	if errors.Is(err, ErrConflict) {
		// Lost a create race with another instance; the account exists.
		return nil
	}
	return err
}
