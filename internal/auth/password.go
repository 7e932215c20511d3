package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var ErrPasswordMismatch = errors.New("password mismatch")

func HashPassword(pwd string, cost int) ([]byte, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return bcrypt.GenerateFromPassword([]byte(pwd), cost)
}

func CheckPassword(hash []byte, pwd string) error {
	if err := bcrypt.CompareHashAndPassword(hash, []byte(pwd)); err != nil {
		return ErrPasswordMismatch
	}
	return nil
}
