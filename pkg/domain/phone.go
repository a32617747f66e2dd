package domain

import (
	"strings"

	dErrors "daftar/pkg/domain-errors"
)

// defaultCountryPrefix is prepended to bare nine-digit subscriber numbers.
const defaultCountryPrefix = "992"

// NormalizePhone reduces a phone number to its canonical digits-only form.
// Nine-digit local numbers get the country prefix; international "00" prefixes
// are stripped. The canonical form is what the phone unique constraint and the
// OTP challenge key operate on.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	digits = strings.TrimPrefix(digits, "00")
	if len(digits) == 9 {
		digits = defaultCountryPrefix + digits
	}
	if len(digits) < 10 || len(digits) > 15 {
		return "", dErrors.New(dErrors.CodeValidation, "invalid phone number")
	}
	return digits, nil
}
