// Package randid generates short random identifiers for operations and
// batch runs.
package randid

import (
	"crypto/rand"
	"math/big"
)

const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

var alphabetLen = big.NewInt(int64(len(alphabet)))

// Generate returns n random lowercase alphanumeric characters.
func Generate(n int) string {
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			panic("randid: crypto/rand failed: " + err.Error())
		}
		b[i] = alphabet[idx.Int64()]
	}
	return string(b)
}

// Prefixed returns prefix, a dash and n random characters, e.g. "op-x1k9".
func Prefixed(prefix string, n int) string {
	return prefix + "-" + Generate(n)
}
