package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type quoteInput struct {
	Email   string          `json:"email" validate:"required,email,max=254"`
	Country string          `json:"country" validate:"required,len=2"`
	Price   decimal.Decimal `json:"price" validate:"money"`
}

func jsonRequest(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
}

func TestDecodeJSONBodyAcceptsValidInput(t *testing.T) {
	var in quoteInput
	require.NoError(t, DecodeJSONBody(jsonRequest(`{"email":"a@b.co","country":"US","price":"12.50"}`), &in))
	assert.Equal(t, "US", in.Country)
	assert.True(t, decimal.RequireFromString("12.5").Equal(in.Price))
}

func TestDecodeJSONBodyRejections(t *testing.T) {
	cases := map[string]string{
		"empty":         ``,
		"unknown field": `{"email":"a@b.co","country":"US","extra":1}`,
		"trailing data": `{"email":"a@b.co","country":"US"} {}`,
		"malformed":     `{"email":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			var in quoteInput
			err := DecodeJSONBody(jsonRequest(body), &in)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), err)
		})
	}
}

func TestDecodeJSONBodyReportsFieldMessages(t *testing.T) {
	var in quoteInput
	err := DecodeJSONBody(jsonRequest(`{"email":"nope","country":"USA","price":"1.999"}`), &in)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be a valid email", details["email"])
	assert.Equal(t, "must have length 2", details["country"])
	assert.Equal(t, "must be a non-negative amount with at most two decimals", details["price"])
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "hello", SanitizeString("  hello  ", 0))
	assert.Equal(t, "hel", SanitizeString("hello", 3))
	assert.Equal(t, "caf", SanitizeString("café", 4))
	assert.Equal(t, "ops@example.com", SanitizeEmail(" OPS@Example.com "))
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=30&bad=x&big=500", nil)

	v, err := ParseQueryInt(req, "limit", 25, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 30, v)

	v, err = ParseQueryInt(req, "missing", 25, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 25, v)

	_, err = ParseQueryInt(req, "bad", 25, 1, 100)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = ParseQueryInt(req, "big", 25, 1, 100)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParseQueryBool(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?featured=true&x=maybe", nil)
	v, err := ParseQueryBool(req, "featured")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.True(t, *v)

	v, err = ParseQueryBool(req, "absent")
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = ParseQueryBool(req, "x")
	assert.Error(t, err)
}

func TestParseIDParam(t *testing.T) {
	withID := func(id string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rc := chi.NewRouteContext()
		rc.URLParams.Add("id", id)
		return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
	}

	id, err := ParseIDParam(withID("42"), "id")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, raw := range []string{"0", "-1", "abc", ""} {
		_, err := ParseIDParam(withID(raw), "id")
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), raw)
	}
}
