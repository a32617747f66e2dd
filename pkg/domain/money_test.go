package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "daftar/pkg/domain-errors"
)

func TestValidateAmount(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		wantErr bool
	}{
		{"positive integer", "200", false},
		{"two decimal places", "19.99", false},
		{"one decimal place", "0.5", false},
		{"smallest unit", "0.01", false},
		{"zero", "0", true},
		{"negative", "-5", true},
		{"three decimal places", "10.005", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := decimal.RequireFromString(tt.amount)
			err := ValidateAmount(d)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	t.Run("rejects empty input", func(t *testing.T) {
		_, err := ParseAmount("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects non-numeric input", func(t *testing.T) {
		_, err := ParseAmount("ten somoni")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("parses a valid amount", func(t *testing.T) {
		d, err := ParseAmount("150.25")
		require.NoError(t, err)
		assert.True(t, d.Equal(decimal.RequireFromString("150.25")))
	})
}
