package service

import (
	"crypto/rand"
	"math/big"
)

// codeAlphabet omits characters that are easy to confuse when read aloud or
// typed from a projector (0/O, 1/I/L).
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const maxCodeAttempts = 5

func randomCode(length int) (string, error) {
	buf := make([]byte, length)
	limit := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
