package auth

import "golang.org/x/crypto/bcrypt"

// HashSecret hashes a link secret for storage.
func HashSecret(secret string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CheckSecret compares a hashed secret with a candidate.
func CheckSecret(hashed, candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(candidate)) == nil
}
