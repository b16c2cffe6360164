package utils

import (
	"crypto/rand"
	"math/big"
)

// RandomString returns n characters drawn uniformly from charset
func RandomString(charset string, n int) string {
	b := make([]byte, n)
	max := big.NewInt(int64(len(charset)))
	for i := range b {
		num, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand does not fail on supported platforms
			panic(err)
		}
		b[i] = charset[num.Int64()]
	}
	return string(b)
}
