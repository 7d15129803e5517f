package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cleanstreet/api/internal/auth"
	"cleanstreet/api/internal/authpw"
	"cleanstreet/api/internal/config"
	"cleanstreet/api/internal/email"
	"cleanstreet/api/internal/media"
	"cleanstreet/api/internal/rbac"
	"cleanstreet/api/internal/search"
	"cleanstreet/api/internal/store"
	"cleanstreet/api/internal/util"
)

// Principal is the authenticated caller. Every controller operation takes it
// explicitly; role and location come from the user record, not the token.
type Principal struct {
	UserID    string
	Name      string
	Email     string
	Role      rbac.Role
	Location  string
	TokenID   string
	ExpiresAt time.Time
}

func (p Principal) subject() rbac.Subject {
	return rbac.Subject{ID: p.UserID, Role: p.Role, Location: p.Location}
}

// actorLabel names the caller in audit entries.
func (p Principal) actorLabel() string {
	return firstNonBlank(p.Name, p.Email, p.UserID)
}

type dataStore interface {
	Ping(context.Context) error

	CreateUser(context.Context, store.User) error
	GetUserByID(context.Context, string) (store.User, error)
	GetUserByEmail(context.Context, string) (store.User, error)
	GetUsersByIDs(context.Context, []string) ([]store.User, error)
	ListUsers(context.Context) ([]store.User, error)
	UpdateUserProfile(context.Context, string, store.ProfileUpdate) (store.User, error)
	UpdateUserRole(context.Context, string, string) (store.User, error)
	UpdateUserPassword(context.Context, string, string) error

	InsertComplaint(context.Context, store.Complaint) (store.Complaint, error)
	GetComplaint(context.Context, string) (store.Complaint, error)
	ListComplaints(context.Context, store.ComplaintFilter) ([]store.Complaint, error)
	UpdateComplaint(context.Context, string, store.ComplaintPatch) (store.Complaint, error)
	DeleteComplaint(context.Context, string) error

	InsertComment(context.Context, store.Comment) (store.Comment, error)
	GetComment(context.Context, string) (store.Comment, error)
	ListComments(context.Context, string) ([]store.Comment, error)
	ReactComment(context.Context, string, string, string) (store.Comment, error)
	DeleteComment(context.Context, string) error

	GetVote(context.Context, string, string) (store.Vote, error)
	UpsertVote(context.Context, store.Vote) (store.Vote, bool, error)
	DeleteVote(context.Context, string, string) error
	VoteSummary(context.Context, string) (store.VoteCounts, error)

	InsertAuditLog(context.Context, store.AuditLog) error
	ListAuditLogs(context.Context, int) ([]store.AuditLog, error)
}

type photoStore interface {
	Upload(ctx context.Context, folder string, file media.File) (string, error)
}

type revocationStore interface {
	RevokeToken(ctx context.Context, tokenID, userID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type statusNotifier interface {
	SendStatusChange(to string, data email.StatusChangeData) error
}

type complaintIndex interface {
	Search(ctx context.Context, q search.Query) []string
	IndexComplaint(c search.ComplaintRecord)
	DeleteComplaint(id string)
}

type Service struct {
	cfg         config.Config
	store       dataStore
	passwords   *authpw.Service
	photos      photoStore
	revocations revocationStore
	index       complaintIndex
	notifier    statusNotifier
	logger      *slog.Logger
}

type Option func(*Service)

// WithPhotoStore enables photo uploads. Without it, requests carrying photos fail.
func WithPhotoStore(photos photoStore) Option {
	return func(s *Service) { s.photos = photos }
}

func WithRevocationStore(revocations revocationStore) Option {
	return func(s *Service) { s.revocations = revocations }
}

func WithSearchIndex(index complaintIndex) Option {
	return func(s *Service) { s.index = index }
}

// WithNotifier emails complaint owners when triage changes their complaint's status.
func WithNotifier(notifier statusNotifier) Option {
	return func(s *Service) { s.notifier = notifier }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func New(cfg config.Config, dataStore dataStore, opts ...Option) *Service {
	s := &Service{
		cfg:       cfg,
		store:     dataStore,
		passwords: authpw.NewService(dataStore, cfg.AdminSignupCode),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// AuthResult is returned by register and login.
type AuthResult struct {
	Token string
	User  store.User
}

type RegisterInput struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Location  string `json:"location"`
	Phone     string `json:"phone"`
	Role      string `json:"role"`
	AdminCode string `json:"admin_code"`
}

func (s *Service) Register(ctx context.Context, input RegisterInput) (AuthResult, error) {
	user, err := s.passwords.Register(ctx, authpw.RegisterRequest{
		Name:      input.Name,
		Email:     input.Email,
		Password:  input.Password,
		Location:  input.Location,
		Phone:     input.Phone,
		Role:      input.Role,
		AdminCode: input.AdminCode,
	})
	if err != nil {
		return AuthResult{}, mapAuthError(err)
	}
	return s.issue(user)
}

func (s *Service) Login(ctx context.Context, email, password string) (AuthResult, error) {
	user, err := s.passwords.Login(ctx, email, password)
	if err != nil {
		return AuthResult{}, mapAuthError(err)
	}
	return s.issue(user)
}

func mapAuthError(err error) error {
	switch {
	case errors.Is(err, authpw.ErrMissingFields),
		errors.Is(err, authpw.ErrPasswordTooShort):
		return validationError(err.Error())
	case errors.Is(err, rbac.ErrUnknownRole):
		return validationError("Invalid role")
	case errors.Is(err, authpw.ErrEmailTaken):
		return conflictError("Email already in use")
	case errors.Is(err, authpw.ErrAdminCodeInvalid):
		return forbiddenError("Invalid admin access code")
	case errors.Is(err, authpw.ErrInvalidCredentials):
		return unauthorizedError("Invalid credentials")
	case errors.Is(err, authpw.ErrWrongPassword):
		return validationError("Current password is incorrect")
	default:
		return err
	}
}

func (s *Service) issue(user store.User) (AuthResult, error) {
	claims := auth.NewClaims(user.ID, user.Role, user.Name, user.Email, util.NewID("tok"), s.tokenTTL())
	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), claims)
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{Token: token, User: user}, nil
}

func (s *Service) tokenTTL() time.Duration {
	if s.cfg.TokenTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return s.cfg.TokenTTL
}

// PrincipalFromToken authenticates a bearer token. Revoked tokens and tokens
// for deleted users are rejected as invalid.
func (s *Service) PrincipalFromToken(ctx context.Context, token string) (Principal, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Principal{}, err
	}
	if s.revocations != nil {
		revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			return Principal{}, fmt.Errorf("check token revocation: %w", err)
		}
		if revoked {
			return Principal{}, auth.ErrInvalidToken
		}
	}

	user, err := s.store.GetUserByID(ctx, claims.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return Principal{}, auth.ErrInvalidToken
	}
	if err != nil {
		return Principal{}, err
	}

	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return Principal{
		UserID:    user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      rbac.Role(user.Role),
		Location:  user.Location,
		TokenID:   claims.ID,
		ExpiresAt: expiresAt,
	}, nil
}

// Logout revokes the presented token until it would have expired anyway.
func (s *Service) Logout(ctx context.Context, p Principal) error {
	if s.revocations == nil {
		s.logger.Warn("logout without revocation store; token stays valid until expiry", "user_id", p.UserID)
		return nil
	}
	if err := s.revocations.RevokeToken(ctx, p.TokenID, p.UserID, p.ExpiresAt); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (s *Service) ChangePassword(ctx context.Context, p Principal, current, next string) error {
	if err := s.passwords.ChangePassword(ctx, p.UserID, current, next); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFoundError("User not found")
		}
		return mapAuthError(err)
	}
	return nil
}

func (s *Service) uploadPhoto(ctx context.Context, folder string, file media.File) (string, error) {
	if s.photos == nil {
		return "", upstreamError("Photo storage not configured")
	}
	url, err := s.photos.Upload(ctx, folder, file)
	if err != nil {
		s.logger.Error("photo upload failed", "folder", folder, "file", file.Name, "error", err)
		if errors.Is(err, media.ErrNotConfigured) {
			return "", upstreamError("Photo storage not configured")
		}
		return "", upstreamError("Photo upload failed")
	}
	return url, nil
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
