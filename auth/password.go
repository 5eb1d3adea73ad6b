package auth

import "golang.org/x/crypto/bcrypt"

var hashCost = bcrypt.DefaultCost

// SetHashCost changes the bcrypt cost; tests lower it.
func SetHashCost(cost int) { hashCost = cost }

// HashPassword returns the bcrypt digest of password.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CheckPassword reports whether password matches digest.
func CheckPassword(digest, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}
