package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"autodiag/config"
	"autodiag/models"

	"github.com/golang-jwt/jwt"
)

// Claims are the identity fields carried by an auth token.
type Claims struct {
	UserID   string
	Role     models.Role
	DeviceID string
	Expires  time.Time
}

func secretKey() []byte {
	return []byte(config.AppConfig.JWTSecret)
}

// GenerateToken creates a signed JWT bound to the given user, role and device.
func GenerateToken(userID string, role models.Role, deviceID string, duration time.Duration) (string, error) {
	if len(secretKey()) == 0 {
		return "", errors.New("jwt secret not configured")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":    userID,
		"role":   string(role),
		"device": deviceID,
		"iat":    now.Unix(),
		"exp":    now.Add(duration).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secretKey())
}

// HashToken computes a SHA-256 hash of the token string.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ValidateToken parses and validates a token string and returns the token if valid.
func ValidateToken(tokenString string) (*jwt.Token, error) {
	return jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secretKey(), nil
	})
}

// ParseToken validates tokenString and extracts its claims.
func ParseToken(tokenString string) (*Claims, error) {
	token, err := ValidateToken(tokenString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}

	sub, _ := mc["sub"].(string)
	role, _ := mc["role"].(string)
	device, _ := mc["device"].(string)
	if sub == "" || device == "" || !models.Role(role).Valid() {
		return nil, fmt.Errorf("%w: token missing identity claims", ErrUnauthorized)
	}
	claims := &Claims{UserID: sub, Role: models.Role(role), DeviceID: device}
	if exp, ok := mc["exp"].(float64); ok {
		claims.Expires = time.Unix(int64(exp), 0)
	}
	return claims, nil
}
