package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/discounts"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/settings"
	"github.com/angelmondragon/storefront-backend/internal/shipping"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type discountEvaluator interface {
	Evaluate(ctx context.Context, code string, subtotal decimal.Decimal, now time.Time) (*discounts.Result, error)
}

type rateResolver interface {
	Resolve(ctx context.Context, country string, weightGrams int) (*shipping.RateQuote, error)
}

type orderTracker interface {
	Track(ctx context.Context, orderNumber, email string) (*orders.TrackingView, error)
}

type siteConfigReader interface {
	SiteConfig(ctx context.Context) (settings.SiteConfig, error)
	Policy(ctx context.Context, slug string) (*settings.Policy, error)
}

type redirectLookup interface {
	Lookup(ctx context.Context, path string) (*models.Redirect, bool, error)
}

type discountValidateRequest struct {
	Code     string          `json:"code" validate:"required,max=40"`
	Subtotal decimal.Decimal `json:"subtotal" validate:"required,money"`
}

type shippingQuoteRequest struct {
	Country     string `json:"country" validate:"required,len=2"`
	WeightGrams int    `json:"weightGrams" validate:"min=0"`
}

type redirectView struct {
	Found      bool   `json:"found"`
	FromPath   string `json:"fromPath,omitempty"`
	ToPath     string `json:"toPath,omitempty"`
	StatusCode int    `json:"statusCode,omitempty"`
}

// DiscountValidate evaluates a code against a subtotal without consuming a use.
func DiscountValidate(svc discountEvaluator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "discount service unavailable"))
			return
		}
		var req discountValidateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Evaluate(r.Context(), req.Code, req.Subtotal, time.Now().UTC())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// ShippingQuote prices a parcel for a destination country.
func ShippingQuote(svc rateResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping service unavailable"))
			return
		}
		var req shippingQuoteRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		quote, err := svc.Resolve(r.Context(), req.Country, req.WeightGrams)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	}
}

// TrackOrder is the public order lookup by number and email.
func TrackOrder(svc orderTracker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		query := r.URL.Query()
		orderNumber := strings.TrimSpace(query.Get("orderNumber"))
		email := strings.TrimSpace(query.Get("email"))
		if orderNumber == "" || email == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "orderNumber and email are required"))
			return
		}
		view, err := svc.Track(r.Context(), orderNumber, email)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// SiteSettings returns the decoded storefront configuration.
func SiteSettings(svc siteConfigReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settings service unavailable"))
			return
		}
		cfg, err := svc.SiteConfig(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cfg)
	}
}

// PolicyPage returns one legal page.
func PolicyPage(svc siteConfigReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settings service unavailable"))
			return
		}
		policy, err := svc.Policy(r.Context(), strings.TrimSpace(chi.URLParam(r, "slug")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, policy)
	}
}

// RedirectLookup resolves a storefront path. A miss is a successful response with found=false.
func RedirectLookup(svc redirectLookup, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "redirect service unavailable"))
			return
		}
		path := strings.TrimSpace(r.URL.Query().Get("path"))
		if path == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "path is required"))
			return
		}
		redirect, found, err := svc.Lookup(r.Context(), path)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !found {
			responses.WriteSuccess(w, redirectView{Found: false})
			return
		}
		responses.WriteSuccess(w, redirectView{
			Found:      true,
			FromPath:   redirect.FromPath,
			ToPath:     redirect.ToPath,
			StatusCode: redirect.StatusCode,
		})
	}
}
