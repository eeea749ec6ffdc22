package infra

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestIsNoRows(t *testing.T) {
	if !IsNoRows(pgx.ErrNoRows) {
		t.Fatal("IsNoRows(pgx.ErrNoRows) = false")
	}
	if !IsNoRows(fmt.Errorf("scan job: %w", pgx.ErrNoRows)) {
		t.Fatal("IsNoRows() = false for wrapped ErrNoRows")
	}
	if IsNoRows(errors.New("connection refused")) {
		t.Fatal("IsNoRows() = true for unrelated error")
	}
	if IsNoRows(nil) {
		t.Fatal("IsNoRows(nil) = true")
	}
}
