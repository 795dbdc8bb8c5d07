package sequence

import (
	"crypto/rand"
	"math/big"
	"strings"

	"go.uber.org/fx"
)

var Module = fx.Module("sequence",
	fx.Provide(NewGenerator),
)

const (
	LicensePrefix    = "FANVIP"
	LicenseSuffixLen = 10

	licenseChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

type Generator interface {
	NextLicenseCode() (string, error)
}

type RandomGenerator struct {
	prefix string
	length int
}

func NewGenerator() Generator {
	return &RandomGenerator{
		prefix: LicensePrefix,
		length: LicenseSuffixLen,
	}
}

// NextLicenseCode returns the prefix followed by a crypto-random [A-Z0-9]
// suffix. Uniqueness is the caller's concern.
func (g *RandomGenerator) NextLicenseCode() (string, error) {
	suffix, err := randomAlphaNumeric(g.length)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.Grow(len(g.prefix) + len(suffix))
	sb.WriteString(g.prefix)
	sb.WriteString(suffix)
	return sb.String(), nil
}

func randomAlphaNumeric(n int) (string, error) {
	b := make([]byte, n)
	max := big.NewInt(int64(len(licenseChars)))
	for i := range b {
		num, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = licenseChars[num.Int64()]
	}
	return string(b), nil
}
