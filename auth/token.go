package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenTTL is the lifetime of owner bearer tokens.
const AccessTokenTTL = 24 * time.Hour

// GenerateAccessToken signs an owner bearer token for userID.
func GenerateAccessToken(secret []byte, userID string) (string, time.Time, error) {
	expiresAt := time.Now().Add(AccessTokenTTL)
	access := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": expiresAt.Unix(),
		"iat": time.Now().Unix(),
		"typ": "access",
	})

	token, err := access.SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign access token: %w", err)
	}
	return token, expiresAt, nil
}

// ValidateToken verifies an owner bearer token and returns its subject and
// expiry.
func ValidateToken(secret []byte, tokenStr string) (string, time.Time, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", time.Time{}, fmt.Errorf("invalid token")
	}
	if typ, _ := claims["typ"].(string); typ != "access" {
		return "", time.Time{}, fmt.Errorf("invalid token type")
	}
	userID, ok := claims["sub"].(string)
	if !ok {
		return "", time.Time{}, fmt.Errorf("invalid sub claim")
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return "", time.Time{}, fmt.Errorf("invalid exp claim")
	}
	return userID, exp.Time, nil
}
