package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/storefront-backend/api/responses"
	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// AdminAuthParams configures the admin gate. The allowlist is resolved once at
// startup and passed in here.
type AdminAuthParams struct {
	JWT        config.JWTConfig
	Allowlist  config.AdminConfig
	Production bool
	Logger     *logger.Logger
}

// AdminAuth validates a bearer token and requires its subject to be an
// allowlisted administrator. In production an empty allowlist closes the admin
// surface entirely.
func AdminAuth(params AdminAuthParams) func(http.Handler) http.Handler {
	logg := params.Logger
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if !params.Allowlist.Configured() && params.Production {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotConfigured, "admin access is not configured"))
				return
			}

			token := bearerToken(r)
			if token == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(params.JWT, token)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			userID := claims.UserID()
			if params.Allowlist.Configured() && !params.Allowlist.Allows(userID) {
				if logg != nil {
					logg.Warn(logg.WithField(ctx, "user_id", userID), "admin.forbidden")
				}
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "administrator access required"))
				return
			}
			if !params.Allowlist.Configured() && logg != nil {
				logg.Warn(logg.WithField(ctx, "user_id", userID), "admin allowlist empty; admitting authenticated user outside production")
			}

			ctx = WithAdmin(ctx, userID, claims.Email)
			if logg != nil {
				ctx = logg.WithAdmin(ctx, userID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	if len(raw) >= 7 && strings.EqualFold(raw[:7], "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return raw
}
