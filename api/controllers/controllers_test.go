package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	checkoutsvc "github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type errorBody struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return body
}

type stubCheckoutService struct {
	input  checkoutsvc.Input
	result *checkoutsvc.Result
	err    error
}

func (s *stubCheckoutService) Checkout(ctx context.Context, input checkoutsvc.Input) (*checkoutsvc.Result, error) {
	s.input = input
	return s.result, s.err
}

const checkoutBody = `{"first_name":"Ada","last_name":"Lovelace","email":"ada@example.com","address":"1 Main St","postal_code":"00100","city":"Rome"}`

func TestCheckoutCreatesOrder(t *testing.T) {
	svc := &stubCheckoutService{result: &checkoutsvc.Result{OrderID: uuid.New(), OrderNumber: "ORD-000001", Total: "36.00", ItemCount: 3}}
	userID := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(checkoutBody))
	ctx := middleware.WithCartSession(req.Context(), "sess-1")
	ctx = middleware.WithUserID(ctx, userID)
	resp := httptest.NewRecorder()
	Checkout(svc, nil).ServeHTTP(resp, req.WithContext(ctx))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.input.SessionID != "sess-1" || svc.input.UserID == nil || *svc.input.UserID != userID {
		t.Fatalf("expected session and user on input, got %+v", svc.input)
	}
	if !strings.Contains(resp.Body.String(), `"order_number":"ORD-000001"`) {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
}

func TestCheckoutGuestHasNoUser(t *testing.T) {
	svc := &stubCheckoutService{result: &checkoutsvc.Result{OrderNumber: "ORD-000002"}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(checkoutBody))
	req = req.WithContext(middleware.WithCartSession(req.Context(), "sess-2"))
	resp := httptest.NewRecorder()
	Checkout(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated || svc.input.UserID != nil {
		t.Fatalf("expected guest checkout, got %d user=%v", resp.Code, svc.input.UserID)
	}
}

func TestCheckoutValidationDetails(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{"first_name":"Ada","email":"not-an-email"}`))
	req = req.WithContext(middleware.WithCartSession(req.Context(), "sess-3"))
	resp := httptest.NewRecorder()
	Checkout(&stubCheckoutService{}, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	body := decodeError(t, resp)
	for _, field := range []string{"last_name", "email", "address", "postal_code", "city"} {
		if _, ok := body.Error.Details[field]; !ok {
			t.Fatalf("expected detail for %s, got %v", field, body.Error.Details)
		}
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	svc := &stubCheckoutService{err: pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(checkoutBody))
	req = req.WithContext(middleware.WithCartSession(req.Context(), "sess-4"))
	resp := httptest.NewRecorder()
	Checkout(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
	if body := decodeError(t, resp); body.Error.Code != "CART_EMPTY" {
		t.Fatalf("unexpected code %s", body.Error.Code)
	}
}

type stubCatalogService struct {
	catalog.Service
	category string
	search   string
	page     int
	detail   *catalog.ProductDetail
	err      error
}

func (s *stubCatalogService) ListCategories(ctx context.Context) ([]catalog.CategoryDTO, error) {
	return []catalog.CategoryDTO{{Name: "Coffee", Slug: "coffee"}}, s.err
}

func (s *stubCatalogService) ListProducts(ctx context.Context, categorySlug, search string, page int) (*catalog.ProductListResult, error) {
	s.category, s.search, s.page = categorySlug, search, page
	return &catalog.ProductListResult{Products: []catalog.ProductDTO{}}, s.err
}

func (s *stubCatalogService) GetProduct(ctx context.Context, slug string) (*catalog.ProductDetail, error) {
	if s.detail == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return s.detail, nil
}

func TestListProductsParsesQuery(t *testing.T) {
	svc := &stubCatalogService{}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products?category=coffee&search=+dark+roast+&page=2", nil)
	resp := httptest.NewRecorder()
	ListProducts(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.category != "coffee" || svc.search != "dark roast" || svc.page != 2 {
		t.Fatalf("unexpected filter category=%q search=%q page=%d", svc.category, svc.search, svc.page)
	}
}

func TestListProductsRejectsBadPage(t *testing.T) {
	resp := httptest.NewRecorder()
	ListProducts(&stubCatalogService{}, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/products?page=0", nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestGetProductNotFound(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/missing", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("slug", "missing")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	resp := httptest.NewRecorder()
	GetProduct(&stubCatalogService{}, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestListCategories(t *testing.T) {
	resp := httptest.NewRecorder()
	ListCategories(&stubCatalogService{}, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/categories", nil))
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"slug":"coffee"`) {
		t.Fatalf("unexpected response %d %s", resp.Code, resp.Body.String())
	}
}

type stubAuthService struct {
	logoutToken  string
	refreshToken string
	resp         *auth.TokenResponse
	err          error
}

func (s *stubAuthService) Register(ctx context.Context, req auth.RegisterRequest) (*auth.TokenResponse, error) {
	return s.resp, s.err
}

func (s *stubAuthService) Login(ctx context.Context, req auth.LoginRequest) (*auth.TokenResponse, error) {
	return s.resp, s.err
}

func (s *stubAuthService) Logout(ctx context.Context, accessToken string) error {
	s.logoutToken = accessToken
	return s.err
}

func (s *stubAuthService) Refresh(ctx context.Context, accessToken, refreshToken string) (*auth.TokenResponse, error) {
	s.refreshToken = refreshToken
	return s.resp, s.err
}

func TestAuthLoginSuccess(t *testing.T) {
	svc := &stubAuthService{resp: &auth.TokenResponse{AccessToken: "access", RefreshToken: "refresh"}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"login":"ada","password":"secret123"}`))
	resp := httptest.NewRecorder()
	AuthLogin(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"access_token":"access"`) {
		t.Fatalf("unexpected response %d %s", resp.Code, resp.Body.String())
	}
}

func TestAuthLoginInvalidCredentials(t *testing.T) {
	svc := &stubAuthService{err: pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"login":"ada","password":"wrong-pass"}`))
	resp := httptest.NewRecorder()
	AuthLogin(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRegisterReturnsCreated(t *testing.T) {
	svc := &stubAuthService{resp: &auth.TokenResponse{AccessToken: "access"}}
	body := `{"username":"ada","email":"ada@example.com","first_name":"Ada","last_name":"Lovelace","password1":"secret123","password2":"secret123"}`
	resp := httptest.NewRecorder()
	AuthRegister(svc, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body)))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestAuthLogoutUsesBearer(t *testing.T) {
	svc := &stubAuthService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer token-123")
	resp := httptest.NewRecorder()
	AuthLogout(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent || svc.logoutToken != "token-123" {
		t.Fatalf("unexpected logout %d token=%q", resp.Code, svc.logoutToken)
	}
}

func TestAuthRefreshRequiresBearer(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", strings.NewReader(`{"refresh_token":"r"}`))
	resp := httptest.NewRecorder()
	AuthRefresh(&stubAuthService{}, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRefreshRotates(t *testing.T) {
	svc := &stubAuthService{resp: &auth.TokenResponse{AccessToken: "new", RefreshToken: "new-refresh"}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", strings.NewReader(`{"refresh_token":"old-refresh"}`))
	req.Header.Set("Authorization", "Bearer expired-token")
	resp := httptest.NewRecorder()
	AuthRefresh(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK || svc.refreshToken != "old-refresh" {
		t.Fatalf("unexpected refresh %d token=%q", resp.Code, svc.refreshToken)
	}
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}

	resp := httptest.NewRecorder()
	HealthReady(cfg, nil, stubPinger{}, stubPinger{}).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	HealthReady(cfg, nil, stubPinger{}, stubPinger{err: errors.New("redis down")}).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
	if body := decodeError(t, resp); body.Error.Details["redis"] != "down" {
		t.Fatalf("expected redis marked down, got %v", body.Error.Details)
	}
}

func TestHealthLive(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	resp := httptest.NewRecorder()
	HealthLive(cfg).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if resp.Code != http.StatusOK || resp.Header().Get("X-Storefront-Env") != "test" {
		t.Fatalf("unexpected live response %d", resp.Code)
	}
}
