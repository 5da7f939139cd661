package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type signupBody struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Quantity int    `json:"quantity" validate:"gte=1"`
}

func decode(t *testing.T, body string) (signupBody, error) {
	t.Helper()
	var dest signupBody
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	err := DecodeJSONBody(httptest.NewRecorder(), req, &dest)
	return dest, err
}

func detailsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("expected field details, got %#v", typed.Details())
	}
	return details
}

func TestDecodeJSONBodyAcceptsValidPayload(t *testing.T) {
	got, err := decode(t, `{"email":"ann@example.com","password":"s3cret-pass","quantity":2}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Email != "ann@example.com" || got.Quantity != 2 {
		t.Fatalf("unexpected decode %+v", got)
	}
}

func TestDecodeJSONBodyReportsFieldsByJSONName(t *testing.T) {
	_, err := decode(t, `{"email":"nope","password":"short","quantity":0}`)
	details := detailsOf(t, err)
	if details["email"] != "must be a valid email" {
		t.Fatalf("unexpected email message %q", details["email"])
	}
	if details["password"] != "must be at least 8 characters" {
		t.Fatalf("unexpected password message %q", details["password"])
	}
	if details["quantity"] != "must be 1 or more" {
		t.Fatalf("unexpected quantity message %q", details["quantity"])
	}
}

func TestDecodeJSONBodyRejectsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"empty":         ``,
		"syntax":        `{"email":`,
		"trailing data": `{"email":"ann@example.com","password":"s3cret-pass","quantity":1} {}`,
	}
	for name, body := range cases {
		if _, err := decode(t, body); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}

	_, err := decode(t, `{"email":"ann@example.com","password":"s3cret-pass","quantity":1,"admin":true}`)
	if detailsOf(t, err)["admin"] != "is not allowed" {
		t.Fatalf("expected unknown field detail, got %v", err)
	}

	_, err = decode(t, `{"quantity":"two"}`)
	if detailsOf(t, err)["quantity"] != "must be a int" {
		t.Fatalf("expected type detail, got %v", err)
	}
}

func TestDecodeJSONBodyEnforcesSizeLimit(t *testing.T) {
	big := `{"email":"` + strings.Repeat("a", MaxBodyBytes) + `"}`
	if _, err := decode(t, big); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseQueryInt(t *testing.T) {
	cases := []struct {
		query   string
		want    int
		wantErr bool
	}{
		{query: "", want: 1},
		{query: "page=%20", want: 1},
		{query: "page=3", want: 3},
		{query: "page=abc", wantErr: true},
		{query: "page=0", wantErr: true},
		{query: "page=51", wantErr: true},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/?"+tc.query, nil)
		got, err := ParseQueryInt(req, "page", 1, 1, 50)
		if tc.wantErr {
			if _, ok := detailsOf(t, err)["page"]; !ok {
				t.Fatalf("%q: expected page detail", tc.query)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("%q: got %d, %v", tc.query, got, err)
		}
	}
}

func TestSanitizeString(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{in: "  coffee \t beans\n", want: "coffee beans"},
		{in: "caf\x00é", want: "café"},
		{in: "crème brûlée", max: 5, want: "crème"},
		{in: "green tea", max: 6, want: "green"},
		{in: "tea", max: 10, want: "tea"},
	}
	for _, tc := range cases {
		if got := SanitizeString(tc.in, tc.max); got != tc.want {
			t.Fatalf("SanitizeString(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
		}
	}
}
