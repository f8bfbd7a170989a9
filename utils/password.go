package utils

import "golang.org/x/crypto/bcrypt"

var passwordCost = bcrypt.DefaultCost

// SetPasswordCost changes the bcrypt cost. Tests lower it to bcrypt.MinCost.
func SetPasswordCost(cost int) {
	passwordCost = cost
}

// HashPassword returns the bcrypt hash of the password using a cost that balances security and performance.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares the bcrypt hashed password with its possible plaintext equivalent.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
