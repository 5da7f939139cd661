package auth

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/users"
	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/security"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var testJWT = config.JWTConfig{
	Secret:                 "secret",
	Issuer:                 "storefront",
	ExpirationMinutes:      30,
	RefreshTokenTTLMinutes: 60,
	RememberMeTTLMinutes:   20160,
}

type stubUserRepo struct {
	byLogin map[string]*models.User
	created []*models.User
	logins  int
}

func newStubUserRepo(existing ...*models.User) *stubUserRepo {
	repo := &stubUserRepo{byLogin: map[string]*models.User{}}
	for _, u := range existing {
		repo.byLogin[u.Username] = u
		repo.byLogin[u.Email] = u
	}
	return repo
}

func (s *stubUserRepo) Create(_ context.Context, dto users.CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	user.ID = uuid.New()
	s.created = append(s.created, user)
	s.byLogin[user.Username] = user
	s.byLogin[user.Email] = user
	return user, nil
}

func (s *stubUserRepo) FindByLogin(_ context.Context, login string) (*models.User, error) {
	if u, ok := s.byLogin[login]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserRepo) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	for _, u := range s.byLogin {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserRepo) EmailTaken(_ context.Context, email string) (bool, error) {
	u, ok := s.byLogin[email]
	return ok && u.Email == email, nil
}

func (s *stubUserRepo) UsernameTaken(_ context.Context, username string) (bool, error) {
	u, ok := s.byLogin[username]
	return ok && u.Username == username, nil
}

func (s *stubUserRepo) UpdateLastLogin(context.Context, uuid.UUID, time.Time) error {
	s.logins++
	return nil
}

type stubSessionManager struct {
	sessions map[string]string
	ttls     map[string]time.Duration
}

func newStubSessionManager() *stubSessionManager {
	return &stubSessionManager{sessions: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (s *stubSessionManager) GenerateWithTTL(_ context.Context, accessID string, ttl time.Duration) (string, error) {
	token := "refresh-" + accessID
	s.sessions[accessID] = token
	s.ttls[accessID] = ttl
	return token, nil
}

func (s *stubSessionManager) Rotate(_ context.Context, oldAccessID, provided string) (string, string, error) {
	if s.sessions[oldAccessID] == "" || s.sessions[oldAccessID] != provided {
		return "", "", session.ErrInvalidRefreshToken
	}
	ttl := s.ttls[oldAccessID]
	delete(s.sessions, oldAccessID)
	newID := uuid.NewString()
	token, _ := s.GenerateWithTTL(context.Background(), newID, ttl)
	return newID, token, nil
}

func (s *stubSessionManager) Revoke(_ context.Context, accessID string) error {
	delete(s.sessions, accessID)
	return nil
}

func buildTestService(t *testing.T, existing ...*models.User) (Service, *stubUserRepo, *stubSessionManager) {
	t.Helper()
	repo := newStubUserRepo(existing...)
	sessions := newStubSessionManager()
	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: sessions,
		JWTConfig:      testJWT,
		Logger:         logger.New(logger.Options{ServiceName: "auth-test", Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc, repo, sessions
}

func mustHashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{})
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return hash
}

func activeUser(t *testing.T, username, password string) *models.User {
	t.Helper()
	return &models.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: mustHashPassword(t, password),
		IsActive:     true,
	}
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) *pkgerrors.Error {
	t.Helper()
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != code {
		t.Fatalf("expected %s, got %v", code, err)
	}
	return typed
}

func TestRegisterCreatesAccountAndSignsIn(t *testing.T) {
	svc, repo, sessions := buildTestService(t)

	resp, err := svc.Register(context.Background(), RegisterRequest{
		Username:  "mario",
		Email:     " Mario@Example.com",
		FirstName: "Mario",
		Password1: "s3cret-pass",
		Password2: "s3cret-pass",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected one user created, got %d", len(repo.created))
	}
	created := repo.created[0]
	if created.Email != "mario@example.com" {
		t.Fatalf("expected normalized email, got %q", created.Email)
	}
	if !created.IsActive {
		t.Fatalf("expected new account to be active")
	}
	if ok, _ := security.VerifyPassword("s3cret-pass", created.PasswordHash); !ok {
		t.Fatalf("stored hash does not verify")
	}
	if resp.User == nil || resp.User.Username != "mario" {
		t.Fatalf("expected user in response, got %+v", resp.User)
	}
	if len(sessions.sessions) != 1 {
		t.Fatalf("expected a refresh session, got %d", len(sessions.sessions))
	}
}

func TestRegisterPasswordMismatch(t *testing.T) {
	svc, repo, _ := buildTestService(t)

	_, err := svc.Register(context.Background(), RegisterRequest{
		Username:  "mario",
		Email:     "mario@example.com",
		Password1: "s3cret-pass",
		Password2: "other-pass",
	})
	typed := requireCode(t, err, pkgerrors.CodeValidation)
	details, _ := typed.Details().(map[string]string)
	if details["password2"] == "" {
		t.Fatalf("expected password2 detail, got %v", typed.Details())
	}
	if len(repo.created) != 0 {
		t.Fatalf("expected no user created")
	}
}

func TestRegisterDuplicateUsernameAndEmail(t *testing.T) {
	existing := activeUser(t, "mario", "whatever-1")
	svc, _, _ := buildTestService(t, existing)

	_, err := svc.Register(context.Background(), RegisterRequest{
		Username:  "mario",
		Email:     "mario@example.com",
		Password1: "s3cret-pass",
		Password2: "s3cret-pass",
	})
	typed := requireCode(t, err, pkgerrors.CodeValidation)
	details, _ := typed.Details().(map[string]string)
	if details["username"] == "" || details["email"] == "" {
		t.Fatalf("expected username and email details, got %v", details)
	}
}

func TestRegisterRejectsBadUsername(t *testing.T) {
	svc, _, _ := buildTestService(t)

	_, err := svc.Register(context.Background(), RegisterRequest{
		Username:  "has space",
		Email:     "x@example.com",
		Password1: "s3cret-pass",
		Password2: "s3cret-pass",
	})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestLoginByUsernameOrEmail(t *testing.T) {
	user := activeUser(t, "luigi", "pa55word!")
	svc, repo, _ := buildTestService(t, user)

	for _, login := range []string{"luigi", "luigi@example.com"} {
		resp, err := svc.Login(context.Background(), LoginRequest{Login: login, Password: "pa55word!"})
		if err != nil {
			t.Fatalf("login %s: %v", login, err)
		}
		claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
		if err != nil {
			t.Fatalf("parse access token: %v", err)
		}
		if claims.UserID != user.ID || claims.Username != "luigi" {
			t.Fatalf("unexpected claims %+v", claims)
		}
	}
	if repo.logins != 2 {
		t.Fatalf("expected last login recorded twice, got %d", repo.logins)
	}
}

func TestLoginRememberMeExtendsRefreshTTL(t *testing.T) {
	user := activeUser(t, "peach", "pa55word!")
	svc, _, sessions := buildTestService(t, user)

	short, err := svc.Login(context.Background(), LoginRequest{Login: "peach", Password: "pa55word!"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	long, err := svc.Login(context.Background(), LoginRequest{Login: "peach", Password: "pa55word!", RememberMe: true})
	if err != nil {
		t.Fatalf("login remember: %v", err)
	}

	shortClaims, _ := pkgAuth.ParseAccessToken(testJWT, short.AccessToken)
	longClaims, _ := pkgAuth.ParseAccessToken(testJWT, long.AccessToken)
	if got := sessions.ttls[shortClaims.ID]; got != time.Hour {
		t.Fatalf("expected default ttl 1h, got %s", got)
	}
	if got := sessions.ttls[longClaims.ID]; got != 14*24*time.Hour {
		t.Fatalf("expected remember-me ttl 14d, got %s", got)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	user := activeUser(t, "toad", "pa55word!")
	inactive := activeUser(t, "bowser", "pa55word!")
	inactive.IsActive = false
	svc, _, _ := buildTestService(t, user, inactive)

	cases := []LoginRequest{
		{Login: "toad", Password: "wrong"},
		{Login: "nobody", Password: "pa55word!"},
		{Login: "bowser", Password: "pa55word!"},
		{Login: "", Password: "pa55word!"},
	}
	for _, req := range cases {
		_, err := svc.Login(context.Background(), req)
		requireCode(t, err, pkgerrors.CodeUnauthorized)
	}
}

func TestRefreshRotatesAndLogoutRevokes(t *testing.T) {
	user := activeUser(t, "daisy", "pa55word!")
	svc, _, sessions := buildTestService(t, user)
	ctx := context.Background()

	login, err := svc.Login(ctx, LoginRequest{Login: "daisy", Password: "pa55word!"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	refreshed, err := svc.Refresh(ctx, login.AccessToken, login.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.RefreshToken == login.RefreshToken {
		t.Fatalf("expected rotated refresh token")
	}

	_, err = svc.Refresh(ctx, login.AccessToken, login.RefreshToken)
	requireCode(t, err, pkgerrors.CodeUnauthorized)

	if err := svc.Logout(ctx, refreshed.AccessToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if len(sessions.sessions) != 0 {
		t.Fatalf("expected all sessions revoked, got %d", len(sessions.sessions))
	}

	_, err = svc.Refresh(ctx, refreshed.AccessToken, refreshed.RefreshToken)
	requireCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestLogoutRejectsGarbageToken(t *testing.T) {
	svc, _, _ := buildTestService(t)
	requireCode(t, svc.Logout(context.Background(), "not-a-jwt"), pkgerrors.CodeUnauthorized)
}
