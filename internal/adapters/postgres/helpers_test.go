package postgres

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kevin07696/royalty-service/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumericConversion(t *testing.T) {
	tests := []string{"0", "12.4", "-3.100000", "1234567890.123456", "0.000001"}

	for _, in := range tests {
		t.Run(in, func(t *testing.T) {
			want := decimal.RequireFromString(in)
			got, err := pgNumericToDecimal(toNumeric(want))
			require.NoError(t, err)
			assert.True(t, want.Equal(got), "got %s", got)
		})
	}
}

func TestPgNumericToDecimal_Rejects(t *testing.T) {
	_, err := pgNumericToDecimal(pgtype.Numeric{})
	assert.Error(t, err, "NULL")

	_, err = pgNumericToDecimal(pgtype.Numeric{NaN: true, Valid: true})
	assert.Error(t, err, "NaN")

	_, err = pgNumericToDecimal(pgtype.Numeric{InfinityModifier: pgtype.Infinity, Valid: true})
	assert.Error(t, err, "infinity")
}

func TestDecoder_KeepsFirstError(t *testing.T) {
	var d decoder
	_ = d.decimal(pgtype.Numeric{}, "total_revenue")
	_ = d.decimal(pgtype.Numeric{NaN: true, Valid: true}, "total_net")

	require.Error(t, d.err)
	assert.Contains(t, d.err.Error(), "total_revenue")
	assert.Nil(t, d.nullDecimal(pgtype.Numeric{}, "commission_override"))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"wrapped", fmt.Errorf("update balances: %w", &pgconn.PgError{Code: "40001"}), true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"no rows", pgx.ErrNoRows, false},
		{"domain error", domain.ErrStaleSnapshot, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryable(tt.err))
		})
	}
}

func TestLookupUUID(t *testing.T) {
	_, err := lookupUUID("st-1", domain.ErrStatementNotFound, "statement_id")
	assert.ErrorIs(t, err, domain.ErrStatementNotFound)

	id, err := lookupUUID("7f0c2a4e-3b1d-4c55-9a43-0a6b7e2f9d10", domain.ErrStatementNotFound, "statement_id")
	require.NoError(t, err)
	assert.Equal(t, "7f0c2a4e-3b1d-4c55-9a43-0a6b7e2f9d10", uuidString(id))
}

func TestNullHelpers(t *testing.T) {
	none, err := nullUUID(nil)
	require.NoError(t, err)
	assert.False(t, none.Valid)
	assert.Nil(t, uuidPtr(none))

	_, err = nullUUID(ptr("not-a-uuid"))
	assert.Error(t, err)

	assert.False(t, textFromPtr(ptr("")).Valid)
	assert.Equal(t, "BMI", *textPtr(textFromPtr(ptr("BMI"))))
	assert.Nil(t, timePtr(timestamptz(nil)))
}

func TestPoolUtilization(t *testing.T) {
	assert.Equal(t, 0.0, poolUtilization(3, 0))
	assert.Equal(t, 80.0, poolUtilization(20, 25))
}

func ptr[T any](v T) *T { return &v }
