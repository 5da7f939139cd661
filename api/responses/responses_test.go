package responses

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccess(w, map[string]string{"hello": "world"})

	if got := w.Code; got != http.StatusOK {
		t.Fatalf("expected status 200 but got %d", got)
	}
	var body SuccessEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode success envelope: %v", err)
	}
	if body.Data.(map[string]any)["hello"] != "world" {
		t.Fatalf("unexpected payload %v", body.Data)
	}
}

func TestWriteCreated(t *testing.T) {
	w := httptest.NewRecorder()
	WriteCreated(w, map[string]string{"order_number": "ORD-000001"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
}

func TestWriteErrorMapsTypedError(t *testing.T) {
	cases := []struct {
		err         error
		status      int
		code        string
		message     string
		wantDetails bool
	}{
		{
			err:         pkgerrors.New(pkgerrors.CodeValidation, "bad input").WithDetails(map[string]string{"field": "demo"}),
			status:      http.StatusBadRequest,
			code:        "VALIDATION_ERROR",
			message:     "bad input",
			wantDetails: true,
		},
		{
			err:         pkgerrors.New(pkgerrors.CodeUnavailable, "out of stock").WithDetails(map[string]any{"name": "Beans"}),
			status:      http.StatusConflict,
			code:        "PRODUCT_UNAVAILABLE",
			message:     "out of stock",
			wantDetails: true,
		},
		{
			err:     pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty"),
			status:  http.StatusUnprocessableEntity,
			code:    "CART_EMPTY",
			message: "cart is empty",
		},
		{
			err:     pkgerrors.New(pkgerrors.CodeOrderNumber, "internal detail"),
			status:  http.StatusConflict,
			code:    "ORDER_NUMBER_CONFLICT",
			message: "could not allocate order number",
		},
		{
			err:     errors.New("boom"),
			status:  http.StatusInternalServerError,
			code:    "INTERNAL_ERROR",
			message: "internal server error",
		},
	}

	logg := logger.New(logger.Options{ServiceName: "responses-test", Output: io.Discard})
	for _, tc := range cases {
		w := httptest.NewRecorder()
		WriteError(context.Background(), logg, w, tc.err)

		if w.Code != tc.status {
			t.Fatalf("%s: expected status %d but got %d", tc.code, tc.status, w.Code)
		}
		var body ErrorEnvelope
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode error envelope: %v", err)
		}
		if body.Error.Code != tc.code || body.Error.Message != tc.message {
			t.Fatalf("unexpected error body %+v", body.Error)
		}
		if (body.Error.Details != nil) != tc.wantDetails {
			t.Fatalf("%s: details presence mismatch: %v", tc.code, body.Error.Details)
		}
	}
}
