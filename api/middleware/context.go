package middleware

import "context"

type adminKey struct{}

// Admin is the authenticated operator behind an admin API request.
type Admin struct {
	ID    string
	Email string
}

// Label names the administrator in audit trails, preferring the email.
func (a Admin) Label() string {
	switch {
	case a.Email != "":
		return a.Email
	case a.ID != "":
		return a.ID
	}
	return "admin"
}

func WithAdmin(ctx context.Context, id, email string) context.Context {
	return context.WithValue(ctx, adminKey{}, Admin{ID: id, Email: email})
}

// AdminFromContext reports the request's administrator, if AdminAuth ran.
func AdminFromContext(ctx context.Context) (Admin, bool) {
	admin, ok := ctx.Value(adminKey{}).(Admin)
	return admin, ok
}

// AdminIDFromContext returns "" on public routes.
func AdminIDFromContext(ctx context.Context) string {
	admin, _ := AdminFromContext(ctx)
	return admin.ID
}

// Actor is the audit label for the current request.
func Actor(ctx context.Context) string {
	admin, _ := AdminFromContext(ctx)
	return admin.Label()
}
