package utils

import "golang.org/x/crypto/bcrypt"

// HashAccessCode returns the bcrypt hash of a guest access code using the
// given cost.
func HashAccessCode(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyAccessCode safely compares a bcrypt hash and a plain access code.
func VerifyAccessCode(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
