package hub

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "viera-hub"

// Claims identifies the caller of the device API
type Claims struct {
	Subject string `json:"name"`
	HubID   string `json:"hub_id"`
	jwt.RegisteredClaims
}

type contextKey string

const claimsKey contextKey = "claims"

// TokenSigner issues and verifies HS256 bearer tokens
type TokenSigner struct {
	secret []byte
	hubID  string
	ttl    time.Duration
}

// NewTokenSigner returns nil when secret is empty, which disables auth
func NewTokenSigner(secret, hubID string, ttl time.Duration) *TokenSigner {
	if secret == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenSigner{secret: []byte(secret), hubID: hubID, ttl: ttl}
}

// Sign mints a token for subject
func (s *TokenSigner) Sign(subject string) (string, error) {
	now := time.Now()
	claims := Claims{
		Subject: subject,
		HubID:   s.hubID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies a token and returns its claims
func (s *TokenSigner) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.HubID != s.hubID {
		return nil, fmt.Errorf("token issued for another hub")
	}
	return claims, nil
}

// Middleware rejects requests without a valid bearer token
func (s *TokenSigner) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := extractToken(r)
		if tokenStr == "" {
			sendError(w, http.StatusUnauthorized, "missing token")
			return
		}

		claims, err := s.Parse(tokenStr)
		if err != nil {
			sendError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetClaims extracts claims from context
func GetClaims(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey).(*Claims)
	return claims
}

func extractToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
