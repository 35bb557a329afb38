package toolcaller

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// setAuthHeader signs a fresh bearer token for cfg (if configured) and sets
// it on req, overriding any static "Authorization" entry in cfg.Headers.
func setAuthHeader(req *http.Request, cfg ServerConfig) error {
	token, err := bearerToken(cfg)
	if err != nil {
		return fmt.Errorf("toolcaller: sign bearer token: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return nil
}

// defaultJWTTTL is used when a ServerConfig sets JWTSecret but leaves
// JWTTTL at zero.
const defaultJWTTTL = 1 * time.Minute

// bearerToken mints a short-lived HS256 JWT for cfg, or returns "" if cfg
// has no JWTSecret configured. Called once per outgoing request so a
// long-lived SSE connection's reconnects always carry a fresh token.
func bearerToken(cfg ServerConfig) (string, error) {
	if cfg.JWTSecret == "" {
		return "", nil
	}
	ttl := cfg.JWTTTL
	if ttl <= 0 {
		ttl = defaultJWTTTL
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   cfg.JWTSubject,
		Issuer:    "bark",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}
