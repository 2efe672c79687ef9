package voucher

import (
	"crypto/rand"
	"fmt"
)

// Codes are unlock tokens with monetary value, so they come from crypto/rand
// rather than a statistical PRNG. The alphabet drops 0/O/1/I to keep codes
// human-typeable at the counter.
const (
	prefix     = "FD-"
	alphabet   = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength = 8
)

type Issuer struct{}

func NewIssuer() Issuer {
	return Issuer{}
}

// Generate returns a fresh redemption code in the form FD-XXXXXXXX.
func (Issuer) Generate() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}

	code := make([]byte, 0, len(prefix)+codeLength)
	code = append(code, prefix...)
	for _, b := range buf {
		// len(alphabet) is 32, which divides 256, so the modulo is unbiased.
		code = append(code, alphabet[int(b)%len(alphabet)])
	}
	return string(code), nil
}
