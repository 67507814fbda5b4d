/**
 * @description
 * IBAN helpers: mod-97 checksum validation for beneficiary bank details and
 * one-time generation of the display IBAN/BIC assigned to a new wallet.
 */

package app

import (
	"crypto/rand"
	"fmt"
)

// walletBIC is the institution BIC printed on every wallet.
const walletBIC = "TRPBFRPP"

// Bank and branch codes embedded in generated wallet IBANs.
const (
	walletBankCode   = "29993"
	walletBranchCode = "00017"
)

// mod97 computes the ISO 13616 remainder of an IBAN-alphabet string, mapping
// letters A-Z to 10-35. The second return is false for characters outside the
// IBAN alphabet.
func mod97(s string) (int, bool) {
	rem := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			rem = (rem*10 + int(r-'0')) % 97
		case r >= 'A' && r <= 'Z':
			rem = (rem*100 + int(r-'A') + 10) % 97
		default:
			return 0, false
		}
	}
	return rem, true
}

// validIBAN reports whether a normalized IBAN has a plausible shape and a
// correct mod-97 checksum.
func validIBAN(iban string) bool {
	if len(iban) < 15 || len(iban) > 34 {
		return false
	}
	for _, r := range iban[:2] {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	for _, r := range iban[2:4] {
		if r < '0' || r > '9' {
			return false
		}
	}
	rem, ok := mod97(iban[4:] + iban[:4])
	return ok && rem == 1
}

// generateIBAN produces a checksum-valid French-format display IBAN for a new
// wallet. The account portion is random; uniqueness collisions are absorbed by
// the account number space, not enforced here.
func generateIBAN() (string, error) {
	account, err := randomDigits(13)
	if err != nil {
		return "", err
	}
	body := walletBankCode + walletBranchCode + account
	rem, ok := mod97(body + "FR00")
	if !ok {
		return "", fmt.Errorf("invalid iban body %q", body)
	}
	return fmt.Sprintf("FR%02d%s", 98-rem, body), nil
}

func randomDigits(n int) (string, error) {
	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	digits := make([]byte, n)
	for i, b := range raw {
		digits[i] = '0' + b%10
	}
	return string(digits), nil
}
