package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

const otpDigits = 6

// HashSecret hashes a password or one-time code with bcrypt.
func HashSecret(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CompareSecret reports whether plain matches hash.
func CompareSecret(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// GenerateOTP returns a zero-padded numeric one-time code.
func GenerateOTP() (string, error) {
	max := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}

var ErrInvalidOTPFormat = errors.New("otp code must be 6 digits")

// ValidateOTPFormat checks the shape of a submitted code.
func ValidateOTPFormat(code string) error {
	if len(code) != otpDigits {
		return ErrInvalidOTPFormat
	}
	for _, ch := range code {
		if ch < '0' || ch > '9' {
			return ErrInvalidOTPFormat
		}
	}
	return nil
}
