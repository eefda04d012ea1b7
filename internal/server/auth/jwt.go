// Package auth mints and verifies the HS256 bearer tokens that guard the
// HTTP sync trigger.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/zdbackup/internal/common"
)

// Issuer is stamped into every trigger token.
const Issuer = "zdbackup"

// Claims are the registered claims plus the name of the caller the token
// was minted for.
type Claims struct {
	jwt.RegisteredClaims
	Caller string `json:"caller"`
}

// GenerateToken returns a signed token for caller, valid for ttl.
func GenerateToken(caller string, secretKey []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Caller: caller,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}
	return tokenString, nil
}

// CallerFromToken verifies tokenString and returns the caller it names.
// Expired tokens yield common.ErrTokenExpired, any other failure
// common.ErrInvalidToken.
func CallerFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if !token.Valid {
		return "", common.ErrInvalidToken
	}
	return claims.Caller, nil
}
