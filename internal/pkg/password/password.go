package password

import "golang.org/x/crypto/bcrypt"

// Cost 12 keeps hashing slow enough for credentials that outlive the
// placeholder phase.
const bcryptCost = 12

// Hash returns the bcrypt hash of a plaintext secret.
func Hash(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify reports whether plain matches the stored hash.
func Verify(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
