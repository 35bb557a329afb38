package toolcaller

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestBearerTokenEmptyWithoutSecret(t *testing.T) {
	tok, err := bearerToken(ServerConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if tok != "" {
		t.Fatalf("got %q, want empty token when JWTSecret is unset", tok)
	}
}

func TestBearerTokenSignsAndParsesWithConfiguredSubject(t *testing.T) {
	cfg := ServerConfig{JWTSecret: "test-secret", JWTSubject: "tree-runner", JWTTTL: time.Minute}
	tok, err := bearerToken(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if tok == "" {
		t.Fatal("expected a non-empty token")
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(tok, claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("expected a valid token, got err=%v valid=%v", err, parsed.Valid)
	}
	if claims.Subject != "tree-runner" {
		t.Fatalf("got subject %q, want %q", claims.Subject, "tree-runner")
	}
}

func TestBearerTokenDefaultsTTLWhenUnset(t *testing.T) {
	cfg := ServerConfig{JWTSecret: "test-secret"}
	tok, err := bearerToken(cfg)
	if err != nil {
		t.Fatal(err)
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		t.Fatal(err)
	}
	if claims.ExpiresAt.Time.Before(time.Now().Add(30 * time.Second)) {
		t.Fatalf("expected default TTL to be applied, expiry too soon: %v", claims.ExpiresAt.Time)
	}
}
