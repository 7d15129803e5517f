// Package authpw provides email/password registration and sign-in.
package authpw

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"cleanstreet/api/internal/rbac"
	"cleanstreet/api/internal/store"
	"cleanstreet/api/internal/util"
	"golang.org/x/crypto/bcrypt"
)

const MinPasswordLength = 6

var (
	ErrMissingFields      = errors.New("name, email and password are required")
	ErrPasswordTooShort   = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrEmailTaken         = errors.New("email already in use")
	ErrAdminCodeInvalid   = errors.New("invalid admin access code")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrWrongPassword      = errors.New("current password is incorrect")
)

// UserStore defines the storage interface for auth
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByID(ctx context.Context, id string) (store.User, error)
	CreateUser(ctx context.Context, user store.User) error
	UpdateUserPassword(ctx context.Context, userID, passwordHash string) error
}

// Service provides email/password authentication
type Service struct {
	store     UserStore
	adminCode string
	cost      int
}

// NewService creates a new auth service. An empty adminCode disables admin sign-up.
func NewService(store UserStore, adminCode string) *Service {
	return &Service{
		store:     store,
		adminCode: adminCode,
		cost:      bcrypt.DefaultCost,
	}
}

// WithCost overrides the bcrypt cost; tests use bcrypt.MinCost.
func (s *Service) WithCost(cost int) *Service {
	s.cost = cost
	return s
}

type RegisterRequest struct {
	Name      string
	Email     string
	Password  string
	Location  string
	Phone     string
	Role      string
	AdminCode string
}

// Register creates a user. Admin accounts need the configured sign-up code;
// nothing is written when the code check fails.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (store.User, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if name == "" || email == "" || req.Password == "" {
		return store.User{}, ErrMissingFields
	}
	if len(req.Password) < MinPasswordLength {
		return store.User{}, ErrPasswordTooShort
	}

	role := rbac.RoleUser
	if strings.TrimSpace(req.Role) != "" {
		parsed, err := rbac.ParseRole(req.Role)
		if err != nil {
			return store.User{}, err
		}
		role = parsed
	}
	if role == rbac.RoleAdmin && !s.adminCodeMatches(req.AdminCode) {
		return store.User{}, ErrAdminCodeInvalid
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return store.User{}, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return store.User{}, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return store.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := store.User{
		ID:           util.NewID("usr"),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         string(role),
		Location:     strings.TrimSpace(req.Location),
		Phone:        strings.TrimSpace(req.Phone),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return store.User{}, ErrEmailTaken
		}
		return store.User{}, fmt.Errorf("create user: %w", err)
	}
	return s.store.GetUserByID(ctx, user.ID)
}

func (s *Service) adminCodeMatches(code string) bool {
	if s.adminCode == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(code), []byte(s.adminCode)) == 1
}

// Login checks the password for email. Unknown emails and wrong passwords
// both return ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (store.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return store.User{}, ErrInvalidCredentials
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return store.User{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return store.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// ChangePassword replaces the user's password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	if current == "" || next == "" {
		return ErrMissingFields
	}
	if len(next) < MinPasswordLength {
		return ErrPasswordTooShort
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return ErrWrongPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.UpdateUserPassword(ctx, userID, string(hash)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}
