package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestTxFromContext_Nil(t *testing.T) {
	tx := TxFromContext(context.Background())
	if tx != nil {
		t.Error("expected nil transaction from empty context")
	}
}

func TestTxFromContext_WithWrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), DBTxKey, "not-a-tx")
	tx := TxFromContext(ctx)
	if tx != nil {
		t.Error("expected nil transaction when context value has wrong type")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	uniqueErr := &pgconn.PgError{Code: "23505"}
	if !IsUniqueViolation(uniqueErr) {
		t.Error("expected 23505 to be a unique violation")
	}

	otherErr := &pgconn.PgError{Code: "23503"}
	if IsUniqueViolation(otherErr) {
		t.Error("expected 23503 not to be a unique violation")
	}

	if IsUniqueViolation(errors.New("plain error")) {
		t.Error("expected plain error not to be a unique violation")
	}

	if IsUniqueViolation(nil) {
		t.Error("expected nil not to be a unique violation")
	}
}

func TestIsNoRows(t *testing.T) {
	if !IsNoRows(pgx.ErrNoRows) {
		t.Error("expected pgx.ErrNoRows to be recognized")
	}
	if IsNoRows(errors.New("boom")) {
		t.Error("expected unrelated error not to be recognized")
	}
}
