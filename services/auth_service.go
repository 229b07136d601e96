package services

import (
	"fmt"
	"time"

	"screw/models"

	"github.com/golang-jwt/jwt/v5"
)

const tokenVersion = 1

// AuthService issues and verifies the signed credential handed to
// clients. The credential is opaque to them: the engine only ever
// trusts the player ID and name recovered from a valid token.
type AuthService struct {
	jwtSecret []byte
}

func NewAuthService(jwtSecret string) *AuthService {
	return &AuthService{jwtSecret: []byte(jwtSecret)}
}

// Claims is the credential payload.
type Claims struct {
	PlayerID     string `json:"player_id"`
	Name         string `json:"name"`
	TokenVersion int    `json:"token_version"`
	jwt.RegisteredClaims
}

// GenerateAccessToken signs a credential for the player. Guest tokens
// never expire; full-account tokens last 30 days.
func (s *AuthService) GenerateAccessToken(player *models.Player) (string, error) {
	claims := Claims{
		PlayerID:     player.PlayerID,
		Name:         player.Name,
		TokenVersion: tokenVersion,
	}
	if !player.Guest {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(30 * 24 * time.Hour))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS384, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}
	return signed, nil
}

// VerifyToken parses and validates a credential, returning the player
// identity it carries.
func (s *AuthService) VerifyToken(tokenString string) (playerID, name string, err error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS384 {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return "", "", fmt.Errorf("%w: invalid token", ErrUnauthorizedMove)
	}
	if claims.PlayerID == "" || claims.Name == "" || claims.TokenVersion == 0 {
		return "", "", fmt.Errorf("%w: invalid token payload", ErrUnauthorizedMove)
	}
	return claims.PlayerID, claims.Name, nil
}
