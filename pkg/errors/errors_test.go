package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
		exposed   bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true, exposed: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required", exposed: true},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied", exposed: true},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found", exposed: true},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected", exposed: true},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true, exposed: true},
		{code: CodeIdempotency, status: http.StatusConflict, publicMsg: "idempotency key reused", detailsOK: true, exposed: true},
		{code: CodeRateLimit, status: http.StatusTooManyRequests, publicMsg: "rate limit exceeded", retryable: true, exposed: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
		{code: CodeUpstream, status: http.StatusInternalServerError, publicMsg: "upstream provider failed", retryable: true},
		{code: CodeNotConfigured, status: http.StatusServiceUnavailable, publicMsg: "service not configured", exposed: true},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			meta := MetadataFor(tt.code)
			assert.Equal(t, tt.status, meta.HTTPStatus)
			assert.Equal(t, tt.publicMsg, meta.PublicMessage)
			assert.Equal(t, tt.retryable, meta.Retryable)
			assert.Equal(t, tt.detailsOK, meta.DetailsAllowed)
			assert.Equal(t, tt.exposed, meta.ExposeMessage)
		})
	}
}

func TestServerFaultsNeverExposeMessages(t *testing.T) {
	for code, meta := range metadataByCode {
		if meta.ServerFault() && code != CodeNotConfigured {
			assert.False(t, meta.ExposeMessage, code)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, MetadataFor("SOMETHING_UNKNOWN").HTTPStatus)
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	assert.Equal(t, CodeValidation, base.Code())
	assert.Equal(t, "missing foo", base.Message())
	assert.Nil(t, base.Details())
	assert.Equal(t, "VALIDATION_ERROR: missing foo", base.Error())

	base.WithDetails(map[string]any{"field": "foo"})
	assert.NotNil(t, base.Details())

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, CodeConflict, wrapped.Code())
	assert.Equal(t, "CONFLICT: ctx: boom", wrapped.Error())

	assert.Nil(t, Wrap(CodeInternal, nil, "plain").Unwrap())
}

func TestNilErrorIsSafe(t *testing.T) {
	var e *Error
	assert.Equal(t, CodeInternal, e.Code())
	assert.Empty(t, e.Message())
	assert.Nil(t, e.WithDetails("x"))
}

func TestAsAndIsCodeFollowWrappedChain(t *testing.T) {
	inner := New(CodeNotFound, "variant not found")
	outer := fmt.Errorf("adjust stock: %w", inner)

	require.NotNil(t, As(outer))
	assert.True(t, IsCode(outer, CodeNotFound))
	assert.False(t, IsCode(outer, CodeConflict))
	assert.False(t, IsCode(stdErrors.New("plain"), CodeInternal))
	assert.Nil(t, As(nil))
}

func TestLogFieldsIncludesPgxDiagnostics(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "discounts_code_key", TableName: "discounts", Message: "duplicate key value"}
	err := Wrap(CodeConflict, fmt.Errorf("insert discount: %w", pgErr), "discount code taken").
		WithDetails(map[string]any{"reason": "duplicate_code"})

	fields := LogFields(err)
	assert.Equal(t, "CONFLICT", fields["error_code"])
	assert.Equal(t, "duplicate_code", fields["reason"])
	assert.Equal(t, "23505", fields["pg_code"])
	assert.Equal(t, "discounts_code_key", fields["pg_constraint"])
	assert.Equal(t, "discounts", fields["pg_table"])
	assert.NotContains(t, fields, "pg_column")
	assert.Len(t, fields["error_chain"], 3)
}

func TestLogFieldsIncludesPqDiagnostics(t *testing.T) {
	fields := LogFields(&pq.Error{Code: "40001", Message: "could not serialize access"})
	assert.Equal(t, "40001", fields["pg_code"])
	assert.Equal(t, "could not serialize access", fields["pg_message"])
	assert.NotContains(t, fields, "error_code")
}

func TestLogFieldsPlainError(t *testing.T) {
	fields := LogFields(stdErrors.New("boom"))
	assert.Equal(t, map[string]any{"error": "boom"}, fields)
	assert.Empty(t, LogFields(nil))
}
