package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"doodle/backend/internal/store"
)

func TestMapErr(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{name: "no rows", in: sql.ErrNoRows, want: store.ErrNotFound},
		{name: "wrapped no rows", in: fmt.Errorf("scan: %w", sql.ErrNoRows), want: store.ErrNotFound},
		{name: "serialization failure", in: &pgconn.PgError{Code: "40001"}, want: store.ErrConflict},
		{name: "deadlock", in: &pgconn.PgError{Code: "40P01"}, want: store.ErrConflict},
		{name: "lock not available", in: &pgconn.PgError{Code: "55P03"}, want: store.ErrConflict},
		{name: "unique violation", in: &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}, want: store.ErrConflict},
		{name: "foreign key violation", in: &pgconn.PgError{Code: "23503"}, want: store.ErrConflict},
		{name: "syntax error", in: &pgconn.PgError{Code: "42601"}, want: store.ErrStorageUnavailable},
		{name: "connection refused", in: errors.New("dial tcp: connection refused"), want: store.ErrStorageUnavailable},
		{name: "canceled", in: context.Canceled, want: context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapErr(tt.in)
			if !errors.Is(got, tt.want) {
				t.Fatalf("mapErr(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	if mapErr(nil) != nil {
		t.Fatalf("mapErr(nil) != nil")
	}
}

func TestMapErr_KeepsDriverErrorInChain(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "08006"}
	got := mapErr(pgErr)

	var target *pgconn.PgError
	if !errors.As(got, &target) {
		t.Fatalf("mapErr lost the driver error: %v", got)
	}
	if errors.Is(got, store.ErrConflict) {
		t.Fatalf("connection failure classified as conflict")
	}
}

func TestLockKeys_SortedAndDeduplicated(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-0000000000aa")
	b := uuid.MustParse("00000000-0000-0000-0000-0000000000bb")

	got := lockKeys("calendar", b, a, b)
	want := []string{"calendar:" + a.String(), "calendar:" + b.String()}
	if len(got) != len(want) {
		t.Fatalf("len(got) = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if n := len(lockKeys("meeting")); n != 0 {
		t.Fatalf("len(lockKeys()) = %d, want 0", n)
	}
}
