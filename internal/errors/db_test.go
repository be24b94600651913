package errors

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapDBError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  ErrorCode
		wantField string
	}{
		{
			name:     "nil error",
			err:      nil,
			wantCode: "",
		},
		{
			name:     "no rows maps to not found",
			err:      pgx.ErrNoRows,
			wantCode: ErrCodeNotFound,
		},
		{
			name:     "deadline exceeded maps to timeout",
			err:      context.DeadlineExceeded,
			wantCode: ErrCodeTimeout,
		},
		{
			name:     "context canceled maps to canceled",
			err:      context.Canceled,
			wantCode: ErrCodeCanceled,
		},
		{
			name: "unique violation with column name",
			err: &pgconn.PgError{
				Code:       pgerrcode.UniqueViolation,
				ColumnName: "cnpj",
			},
			wantCode:  ErrCodeConflict,
			wantField: "cnpj",
		},
		{
			name: "unique violation parses detail",
			err: &pgconn.PgError{
				Code:   pgerrcode.UniqueViolation,
				Detail: "Key (cnpj)=(11222333000181) already exists.",
			},
			wantCode:  ErrCodeConflict,
			wantField: "cnpj",
		},
		{
			name:     "foreign key violation maps to conflict",
			err:      &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation},
			wantCode: ErrCodeConflict,
		},
		{
			name: "check violation maps to validation",
			err: &pgconn.PgError{
				Code:       pgerrcode.CheckViolation,
				ColumnName: "status",
			},
			wantCode:  ErrCodeValidation,
			wantField: "status",
		},
		{
			name: "not null violation maps to validation",
			err: &pgconn.PgError{
				Code:       pgerrcode.NotNullViolation,
				ColumnName: "cnpj",
			},
			wantCode:  ErrCodeValidation,
			wantField: "cnpj",
		},
		{
			name:     "other pg error maps to internal",
			err:      &pgconn.PgError{Code: pgerrcode.SerializationFailure},
			wantCode: ErrCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapDBError(tt.err)
			if tt.err == nil {
				if got != nil {
					t.Errorf("MapDBError(nil) = %v, want nil", got)
				}
				return
			}
			var appErr *AppError
			if !errors.As(got, &appErr) {
				t.Fatalf("MapDBError() = %T, want *AppError", got)
			}
			if appErr.Code != tt.wantCode {
				t.Errorf("Code = %v, want %v", appErr.Code, tt.wantCode)
			}
			if tt.wantField != "" && appErr.Field != tt.wantField {
				t.Errorf("Field = %v, want %v", appErr.Field, tt.wantField)
			}
		})
	}
}

func TestMapDBErrorPassthrough(t *testing.T) {
	plain := errors.New("dial tcp: connection refused")
	if got := MapDBError(plain); !errors.Is(got, plain) {
		t.Errorf("MapDBError() = %v, want original error", got)
	}
	var appErr *AppError
	if errors.As(MapDBError(plain), &appErr) {
		t.Error("unrecognized errors should not be converted to AppError")
	}
}
