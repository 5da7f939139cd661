package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/users"
	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/security"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const invalidCredentialsMessage = "invalid credentials"

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// Service covers account registration and the token lifecycle.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*TokenResponse, error)
	Login(ctx context.Context, req LoginRequest) (*TokenResponse, error)
	Logout(ctx context.Context, accessToken string) error
	Refresh(ctx context.Context, accessToken, refreshToken string) (*TokenResponse, error)
}

type userRepository interface {
	Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error)
	FindByLogin(ctx context.Context, login string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	EmailTaken(ctx context.Context, email string) (bool, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

type sessionManager interface {
	GenerateWithTTL(ctx context.Context, accessID string, ttl time.Duration) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	UserRepo       userRepository
	SessionManager sessionManager
	JWTConfig      config.JWTConfig
	PasswordConfig config.PasswordConfig
	Logger         *logger.Logger
	Now            func() time.Time
}

type service struct {
	users       userRepository
	session     sessionManager
	jwtCfg      config.JWTConfig
	passwordCfg config.PasswordConfig
	logg        *logger.Logger
	now         func() time.Time
}

// NewService constructs the auth service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.UserRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if params.SessionManager == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		users:       params.UserRepo,
		session:     params.SessionManager,
		jwtCfg:      params.JWTConfig,
		passwordCfg: params.PasswordConfig,
		logg:        params.Logger,
		now:         now,
	}, nil
}

// Register creates an active account and signs it in.
func (s *service) Register(ctx context.Context, req RegisterRequest) (*TokenResponse, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	fields := map[string]string{}
	if username == "" || len(username) > 150 || !usernamePattern.MatchString(username) {
		fields["username"] = "letters, digits and @/./+/-/_ only"
	}
	if email == "" || !strings.Contains(email, "@") {
		fields["email"] = "invalid email"
	}
	if req.Password1 == "" {
		fields["password1"] = "required"
	} else if req.Password1 != req.Password2 {
		fields["password2"] = "passwords do not match"
	}
	if len(fields) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "registration invalid").WithDetails(fields)
	}

	taken, err := s.users.UsernameTaken(ctx, username)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check username")
	}
	if taken {
		fields["username"] = "already taken"
	}
	taken, err = s.users.EmailTaken(ctx, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check email")
	}
	if taken {
		fields["email"] = "already registered"
	}
	if len(fields) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account already exists").WithDetails(fields)
	}

	hash, err := security.HashPassword(req.Password1, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user, err := s.users.Create(ctx, users.CreateUserDTO{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
	})
	if err != nil {
		// lost a race with a concurrent registration
		if field := duplicateField(err); field != "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "account already exists").
				WithDetails(map[string]string{field: "already taken"})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
	}

	s.logg.Info(s.logg.WithUserID(ctx, user.ID.String()), "account registered")
	return s.issue(ctx, user, false)
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	user, err := s.authenticate(ctx, req.Login, req.Password)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, user, req.RememberMe)
}

// Logout revokes the refresh session tied to the access token. Expired access
// tokens are accepted so a stale client can still sign out.
func (s *service) Logout(ctx context.Context, accessToken string) error {
	claims, err := pkgAuth.ParseAccessTokenAllowExpired(s.jwtCfg, accessToken)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.ID == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}
	if err := s.session.Revoke(ctx, claims.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	return nil
}

// Refresh rotates the refresh token and mints a new access token for the same user.
func (s *service) Refresh(ctx context.Context, accessToken, refreshToken string) (*TokenResponse, error) {
	claims, err := pkgAuth.ParseAccessTokenAllowExpired(s.jwtCfg, accessToken)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
	}
	if !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	newAccessID, newRefresh, err := s.session.Rotate(ctx, claims.ID, refreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate session")
	}

	access, err := pkgAuth.MintAccessToken(s.jwtCfg, s.now().UTC(), pkgAuth.AccessTokenPayload{
		UserID:   user.ID,
		Username: user.Username,
		JTI:      newAccessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	return &TokenResponse{
		AccessToken:  access,
		RefreshToken: newRefresh,
		User:         users.FromModel(user),
	}, nil
}

func (s *service) authenticate(ctx context.Context, login, password string) (*models.User, error) {
	input := strings.TrimSpace(login)
	if input == "" || password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	user, err := s.users.FindByLogin(ctx, input)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
	}

	valid, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil && !errors.Is(err, security.ErrInvalidHash) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid || !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	return user, nil
}

// issue records the login and mints an access token plus a refresh session.
func (s *service) issue(ctx context.Context, user *models.User, rememberMe bool) (*TokenResponse, error) {
	now := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update last login")
	}
	user.LastLoginAt = &now

	accessID := session.NewAccessID()
	access, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{
		UserID:   user.ID,
		Username: user.Username,
		JTI:      accessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}

	ttl := s.jwtCfg.RefreshTokenTTL()
	if rememberMe {
		ttl = s.jwtCfg.RememberMeTTL()
	}
	refresh, err := s.session.GenerateWithTTL(ctx, accessID, ttl)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store refresh token")
	}

	return &TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         users.FromModel(user),
	}, nil
}

func duplicateField(err error) string {
	switch {
	case db.IsUniqueViolation(err, "ux_users_username"), db.IsUniqueViolation(err, "users.username"):
		return "username"
	case db.IsUniqueViolation(err, "ux_users_email"), db.IsUniqueViolation(err, "users.email"):
		return "email"
	}
	return ""
}
