// Package auth verifies the session tokens the Forest Admin frontend sends
// to the agent.
package auth

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"gorm-forestadmin/internal/metadata"
)

// SessionCookie carries the token when the frontend does not send an
// Authorization header.
const SessionCookie = "forest_session_token"

// SessionTTL is the lifetime of tokens built by GenerateToken.
const SessionTTL = 14 * 24 * time.Hour

// Claims is the payload of a Forest session token. id and rendering_id are
// sent either as numbers or as strings.
type Claims struct {
	jwt.RegisteredClaims
	ID          json.Number       `json:"id"`
	Email       string            `json:"email"`
	FirstName   string            `json:"first_name"`
	LastName    string            `json:"last_name"`
	Team        string            `json:"team"`
	RenderingID json.Number       `json:"rendering_id"`
	Tags        map[string]string `json:"tags,omitempty"`
}

// User converts the claims to the request user.
func (c *Claims) User() (*metadata.UserContext, error) {
	renderingID, err := strconv.ParseInt(c.RenderingID.String(), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid rendering_id %q", c.RenderingID)
	}
	return &metadata.UserContext{
		ID:          c.ID.String(),
		Email:       c.Email,
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		Team:        c.Team,
		RenderingID: renderingID,
		Tags:        c.Tags,
	}, nil
}

// GenerateToken signs a session token for user, the way the Forest server
// does after a login.
func GenerateToken(user *metadata.UserContext, secret string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionTTL)),
		},
		ID:          json.Number(user.ID),
		Email:       user.Email,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		Team:        user.Team,
		RenderingID: json.Number(strconv.FormatInt(user.RenderingID, 10)),
		Tags:        user.Tags,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// ParseToken validates an HS256 session token signed with secret.
func ParseToken(tokenStr string, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}
