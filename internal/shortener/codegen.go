package shortener

import "crypto/rand"

// Alphabet excludes visually ambiguous glyphs (0/O, 1/l/I, i, o).
const (
	codeAlphabet = "23456789abcdefghjkmnpqrstuvwxyzABCDEFGHJKMNPQRSTUVWXYZ"
	CodeLength   = 7
)

// NewCode returns a random fixed-length candidate over the safe alphabet.
func NewCode() string {
	b := make([]byte, CodeLength)
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return string(b)
}

// IsValidCode reports whether s is a well-formed generated code.
func IsValidCode(s string) bool {
	if len(s) != CodeLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isSafeChar(s[i]) {
			return false
		}
	}
	return true
}

func isSafeChar(c byte) bool {
	for i := 0; i < len(codeAlphabet); i++ {
		if codeAlphabet[i] == c {
			return true
		}
	}
	return false
}
