package expression

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	fields := []string{"total_price", "subtotal_price", "created_at", "email"}

	tests := []struct {
		name    string
		expr    string
		wantErr error
	}{
		{name: "field arithmetic", expr: "total_price - subtotal_price"},
		{name: "nested functions", expr: "IF(AND(total_price, email), SUM(total_price, 1), 0)"},
		{name: "literal is not an identifier", expr: "REGEXP_EXTRACT(email, '@(.+)$')"},
		{name: "escaped quote", expr: "CONCAT(email, 'it''s')"},
		{name: "date unit literal", expr: "DATE_DIFF(created_at, created_at, 'day')"},
		{name: "empty", expr: "   ", wantErr: ErrEmpty},
		{name: "unclosed", expr: "SUM(total_price", wantErr: ErrUnbalancedParens},
		{name: "close before open", expr: ")total_price(", wantErr: ErrUnbalancedParens},
		{name: "paren inside literal ignored", expr: "CONCAT(email, '(')"},
		{name: "unterminated literal", expr: "CONCAT(email, 'x)", wantErr: ErrUnterminatedLiteral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.expr, fields)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidate_UnknownIdentifiers(t *testing.T) {
	err := Validate("SUM(price, price, MAX(tax))", []string{"total_price"})

	var invalid *InvalidIdentifiersError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, []string{"price", "MAX", "tax"}, invalid.Names)
	assert.Equal(t, "invalid fields or functions: price, MAX, tax", err.Error())
}

func TestFunctions(t *testing.T) {
	groups := Functions()

	assert.Len(t, groups, 4)
	assert.Len(t, groups["Arithmetic"], 2)
	assert.Len(t, groups["Logical"], 3)
	assert.Len(t, groups["Text"], 3)
	assert.Len(t, groups["Date"], 2)
	assert.Equal(t, "SUM", groups["Arithmetic"][0].Name)
}
