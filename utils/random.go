package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// JoinCodeCharset avoids characters that read ambiguously on a shared
// screen (no 0/O, 1/I/L).
const JoinCodeCharset = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

// GenerateCode returns n random bytes as an upper-case hex string.
func GenerateCode(n int) (string, error) {
	byt := make([]byte, n)

	if _, err := rand.Read(byt); err != nil {
		return "", err
	}

	return strings.ToUpper(hex.EncodeToString(byt)), nil
}

// GenerateJoinCode returns a short code of the given length suitable
// for QR/URL entry into an instance.
func GenerateJoinCode(length int) (string, error) {
	code := make([]byte, length)

	if _, err := rand.Read(code); err != nil {
		return "", err
	}

	for i := 0; i < length; i++ {
		code[i] = JoinCodeCharset[int(code[i])%len(JoinCodeCharset)]
	}

	return string(code), nil
}
