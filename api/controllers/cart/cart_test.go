package cart

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	cartsvc "github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type stubCartService struct {
	summary  *cartsvc.Summary
	err      error
	addErr   error
	removed  bool
	lastQty  int
	lastID   uuid.UUID
	lastSess string
	cleared  bool
}

func (s *stubCartService) Add(ctx context.Context, sessionID string, productID uuid.UUID, qty int) error {
	s.lastSess, s.lastID, s.lastQty = sessionID, productID, qty
	return s.addErr
}

func (s *stubCartService) Remove(ctx context.Context, sessionID string, productID uuid.UUID) (bool, error) {
	s.lastID = productID
	return s.removed, s.err
}

func (s *stubCartService) UpdateQuantity(ctx context.Context, sessionID string, productID uuid.UUID, qty int) error {
	s.lastID, s.lastQty = productID, qty
	return s.err
}

func (s *stubCartService) Items(ctx context.Context, sessionID string) ([]cartsvc.Item, error) {
	if s.summary == nil {
		return nil, s.err
	}
	return s.summary.Items, s.err
}

func (s *stubCartService) Summary(ctx context.Context, sessionID string) (*cartsvc.Summary, error) {
	return s.summary, s.err
}

func (s *stubCartService) Total(ctx context.Context, sessionID string) (decimal.Decimal, error) {
	return s.summary.Total, s.err
}

func (s *stubCartService) ItemCount(ctx context.Context, sessionID string) (int, error) {
	if s.summary == nil {
		return 0, s.err
	}
	return s.summary.ItemCount, s.err
}

func (s *stubCartService) Clear(ctx context.Context, sessionID string) error {
	s.cleared = true
	return s.err
}

func sampleSummary() *cartsvc.Summary {
	price := decimal.RequireFromString("12.00")
	return &cartsvc.Summary{
		Items: []cartsvc.Item{{
			Product:      models.Product{ID: uuid.New(), Name: "Beans", Slug: "beans", Price: decimal.RequireFromString("13.50"), IsAvailable: true, Stock: 4},
			Quantity:     2,
			UnitPrice:    price,
			CurrentPrice: decimal.RequireFromString("13.50"),
			Subtotal:     decimal.RequireFromString("24.00"),
		}},
		Total:     decimal.RequireFromString("24.00"),
		ItemCount: 2,
	}
}

func withSession(req *http.Request) *http.Request {
	return req.WithContext(middleware.WithCartSession(req.Context(), "sess-1"))
}

func withProductParam(req *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("productId", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestCartFetchSuccess(t *testing.T) {
	handler := CartFetch(&stubCartService{summary: sampleSummary()}, nil)

	req := withSession(httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data cartsvc.SummaryDTO `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Total != "24.00" || envelope.Data.ItemCount != 2 {
		t.Fatalf("unexpected summary %+v", envelope.Data)
	}
	if len(envelope.Data.Items) != 1 || !envelope.Data.Items[0].PriceChanged {
		t.Fatalf("expected a repriced line, got %+v", envelope.Data.Items)
	}
}

func TestCartFetchRequiresSession(t *testing.T) {
	handler := CartFetch(&stubCartService{summary: sampleSummary()}, nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
}

func TestCartCount(t *testing.T) {
	handler := CartCount(&stubCartService{summary: sampleSummary()}, nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, withSession(httptest.NewRequest(http.MethodGet, "/api/v1/cart/count", nil)))

	if !strings.Contains(resp.Body.String(), `"item_count":2`) {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
}

func TestCartAddItemDefaultsQuantity(t *testing.T) {
	svc := &stubCartService{summary: sampleSummary()}
	productID := uuid.New()
	body := `{"product_id":"` + productID.String() + `"}`

	resp := httptest.NewRecorder()
	CartAddItem(svc, nil).ServeHTTP(resp, withSession(httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body))))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.lastQty != 1 || svc.lastID != productID || svc.lastSess != "sess-1" {
		t.Fatalf("unexpected add call qty=%d id=%s sess=%s", svc.lastQty, svc.lastID, svc.lastSess)
	}
}

func TestCartAddItemSurfacesUnavailable(t *testing.T) {
	svc := &stubCartService{
		summary: sampleSummary(),
		addErr:  pkgerrors.New(pkgerrors.CodeUnavailable, "product is not available"),
	}
	body := `{"product_id":"` + uuid.NewString() + `","quantity":3}`

	resp := httptest.NewRecorder()
	CartAddItem(svc, nil).ServeHTTP(resp, withSession(httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body))))

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
}

func TestCartAddItemRejectsMissingProduct(t *testing.T) {
	resp := httptest.NewRecorder()
	CartAddItem(&stubCartService{}, nil).ServeHTTP(resp, withSession(httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(`{"quantity":1}`))))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCartUpdateItem(t *testing.T) {
	svc := &stubCartService{summary: sampleSummary()}
	productID := uuid.New()

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/cart/items/"+productID.String(), strings.NewReader(`{"quantity":0}`))
	req = withProductParam(withSession(req), productID.String())
	resp := httptest.NewRecorder()
	CartUpdateItem(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.lastID != productID || svc.lastQty != 0 {
		t.Fatalf("unexpected update call id=%s qty=%d", svc.lastID, svc.lastQty)
	}
}

func TestCartUpdateItemRejectsBadID(t *testing.T) {
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/cart/items/nope", strings.NewReader(`{"quantity":1}`))
	req = withProductParam(withSession(req), "nope")
	resp := httptest.NewRecorder()
	CartUpdateItem(&stubCartService{}, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCartRemoveItemReportsOutcome(t *testing.T) {
	productID := uuid.New()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/cart/items/"+productID.String(), nil)
	req = withProductParam(withSession(req), productID.String())
	resp := httptest.NewRecorder()
	CartRemoveItem(&stubCartService{removed: false}, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"removed":false`) {
		t.Fatalf("unexpected response %d %s", resp.Code, resp.Body.String())
	}
}

func TestCartClear(t *testing.T) {
	svc := &stubCartService{}
	resp := httptest.NewRecorder()
	CartClear(svc, nil).ServeHTTP(resp, withSession(httptest.NewRequest(http.MethodDelete, "/api/v1/cart", nil)))

	if resp.Code != http.StatusNoContent || !svc.cleared {
		t.Fatalf("expected 204 and clear, got %d cleared=%v", resp.Code, svc.cleared)
	}
}
