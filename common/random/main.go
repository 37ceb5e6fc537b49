// Package random generates identifier suffixes for synthesized response ids.
package random

import (
	"crypto/rand"
	"math/big"
)

const alphanumeric = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// GetRandomString returns length alphanumeric characters drawn from
// crypto/rand.
func GetRandomString(length int) string {
	out := make([]byte, length)
	max := big.NewInt(int64(len(alphanumeric)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the platform source is broken.
			panic(err)
		}
		out[i] = alphanumeric[n.Int64()]
	}
	return string(out)
}
