package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected"},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true},
		{code: CodeInsufficient, status: http.StatusUnprocessableEntity, publicMsg: "insufficient funds", detailsOK: true},
		{code: CodeIdempotency, status: http.StatusConflict, publicMsg: "idempotency key reused", detailsOK: true},
		{code: CodeRateLimit, status: http.StatusTooManyRequests, publicMsg: "rate limit exceeded"},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "foo"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeForbidden, "no entry")
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestIsMatchesWrappedCode(t *testing.T) {
	sentinel := stdErrors.New("insufficient funds")
	err := fmt.Errorf("pay order: %w", Wrap(CodeInsufficient, sentinel, "wallet balance too low"))
	if !Is(err, CodeInsufficient) {
		t.Fatalf("expected code to be found through fmt wrapping")
	}
	if Is(err, CodeConflict) {
		t.Fatalf("unexpected conflict match")
	}
	if !stdErrors.Is(err, sentinel) {
		t.Fatalf("sentinel should stay reachable")
	}
	if Is(sentinel, CodeInsufficient) {
		t.Fatalf("plain errors carry no code")
	}
}

func TestDumpCollectsChain(t *testing.T) {
	cause := stdErrors.New("connection reset")
	err := Wrap(CodeDependency, cause, "load wallet")
	dump := Dump(err)
	if dump.Code != CodeDependency {
		t.Fatalf("expected dependency code, got %s", dump.Code)
	}
	if len(dump.Chain) != 2 {
		t.Fatalf("expected two chain entries, got %v", dump.Chain)
	}
	if dump.PGCode != "" {
		t.Fatalf("non-postgres errors should not carry pg fields")
	}
}

func TestDumpExtractsPostgresFields(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "uq_wallets_user_id", TableName: "wallets", Message: "duplicate key value"}
	dump := Dump(Wrap(CodeConflict, pgErr, "create wallet"))
	if dump.PGCode != "23505" || dump.PGConstraint != "uq_wallets_user_id" || dump.PGTable != "wallets" {
		t.Fatalf("unexpected pgx dump %+v", dump)
	}

	pqErr := &pq.Error{Code: "23514", Constraint: "chk_wallets_balance_non_negative", Table: "wallets"}
	dump = Dump(fmt.Errorf("debit: %w", pqErr))
	if dump.PGCode != "23514" || dump.PGConstraint != "chk_wallets_balance_non_negative" {
		t.Fatalf("unexpected pq dump %+v", dump)
	}
}

func TestDumpNamesStorefrontSubject(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		subject   string
		retryable bool
	}{
		{
			name:    "wallet per user",
			err:     &pgconn.PgError{Code: "23505", ConstraintName: "wallets_user_id_key", TableName: "wallets"},
			subject: "wallet",
		},
		{
			name:    "cart variant",
			err:     &pq.Error{Code: "23505", Constraint: "cart_items_variant_key", Table: "cart_items"},
			subject: "cart item",
		},
		{
			name:    "unknown constraint falls back to table",
			err:     &pgconn.PgError{Code: "23503", ConstraintName: "order_items_order_fk", TableName: "order_items"},
			subject: "order item",
		},
		{
			name:      "serialization failure",
			err:       &pgconn.PgError{Code: "40001", TableName: "wallets"},
			subject:   "wallet",
			retryable: true,
		},
		{
			name:    "sqlite unique",
			err:     stdErrors.New("UNIQUE constraint failed: products.slug"),
			subject: "product",
		},
		{
			name: "plain error",
			err:  stdErrors.New("connection reset"),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dump := Dump(Wrap(CodeConflict, tc.err, "save"))
			if dump.Subject != tc.subject || dump.Retryable != tc.retryable {
				t.Fatalf("expected subject %q retryable %v, got %+v", tc.subject, tc.retryable, dump)
			}
		})
	}
}
