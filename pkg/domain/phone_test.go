package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		want  string
		valid bool
	}{
		{"nine digit local number gets country prefix", "918765432", "992918765432", true},
		{"already prefixed number passes through", "992918765432", "992918765432", true},
		{"formatting characters stripped", "+992 (91) 876-54-32", "992918765432", true},
		{"international 00 prefix stripped", "00992918765432", "992918765432", true},
		{"too short", "12345", "", false},
		{"no digits", "call me", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.in)
			if !tt.valid {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
