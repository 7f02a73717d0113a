// Package codegen generates human-typeable codes for invites and membership serials.
package codegen

import (
	"crypto/rand"
	"math/big"
)

// Uppercase alphanumerics without 0/O, 1/I/L.
const charset = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const (
	InviteCodeLength = 10
	SerialLength     = 8
	SerialPrefix     = "MC-"
)

func InviteCode() (string, error) {
	return generate(InviteCodeLength)
}

func MembershipSerial() (string, error) {
	code, err := generate(SerialLength)
	if err != nil {
		return "", err
	}
	return SerialPrefix + code, nil
}

func generate(length int) (string, error) {
	result := make([]byte, length)
	max := big.NewInt(int64(len(charset)))

	for i := range result {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}

	return string(result), nil
}
