package service

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func newTestAuth(t *testing.T, password string) *AuthService {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	return NewAuthService(AuthConfig{Secret: testSecret, PasswordHash: hash})
}

func signClaims(t *testing.T, key []byte, subject string, expires time.Time) string {
	t.Helper()
	tk := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(expires.Add(-time.Hour)),
		},
	})
	s, err := tk.SignedString(key)
	if err != nil {
		t.Fatalf("SignedString failed: %v", err)
	}
	return s
}

// --- HashPassword tests ---

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("s3cr3t")
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	if hash == "s3cr3t" {
		t.Errorf("expected hashed password not equal to raw password")
	}
	if err := verifyPassword(hash, "s3cr3t"); err != nil {
		t.Errorf("hash does not verify with original password: %v", err)
	}
	if _, err := HashPassword("   "); err == nil {
		t.Errorf("expected error for empty password")
	}
}

// --- GenerateToken tests ---

func TestAuthService_GenerateToken_Success(t *testing.T) {
	svc := newTestAuth(t, "letmein")

	token, err := svc.GenerateToken("letmein")
	if err != nil {
		t.Fatalf("GenerateToken returned error: %v", err)
	}
	if token == "" {
		t.Fatalf("expected non-empty token")
	}

	sub, err := svc.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken failed: %v", err)
	}
	if sub != operatorSubject {
		t.Fatalf("expected subject %q, got %q", operatorSubject, sub)
	}
}

func TestAuthService_GenerateToken_InvalidPassword(t *testing.T) {
	svc := newTestAuth(t, "correct")

	for _, pw := range []string{"wrong", "", "  "} {
		if _, err := svc.GenerateToken(pw); !errors.Is(err, ErrInvalidPassword) {
			t.Errorf("GenerateToken(%q): expected ErrInvalidPassword, got %v", pw, err)
		}
	}
}

func TestAuthService_GenerateToken_Disabled(t *testing.T) {
	hash, err := HashPassword("pw")
	if err != nil {
		t.Fatal(err)
	}
	cases := map[string]AuthConfig{
		"no hash":   {Secret: testSecret},
		"no secret": {PasswordHash: hash},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewAuthService(cfg).GenerateToken("pw")
			if !errors.Is(err, ErrSignInDisabled) {
				t.Fatalf("expected ErrSignInDisabled, got %v", err)
			}
		})
	}
}

// --- ParseToken tests ---

func TestAuthService_ParseToken_Malformed(t *testing.T) {
	svc := newTestAuth(t, "pw")
	if _, err := svc.ParseToken("not-a-jwt"); err == nil {
		t.Fatalf("expected error for malformed token")
	}
}

func TestAuthService_ParseToken_InvalidSignature(t *testing.T) {
	svc := newTestAuth(t, "pw")
	bad := signClaims(t, []byte("different-key"), operatorSubject, time.Now().Add(time.Hour))
	if _, err := svc.ParseToken(bad); err == nil {
		t.Fatalf("expected signature verification error")
	}
}

func TestAuthService_ParseToken_Expired(t *testing.T) {
	svc := newTestAuth(t, "pw")
	expired := signClaims(t, []byte(testSecret), operatorSubject, time.Now().Add(-2*time.Hour))
	if _, err := svc.ParseToken(expired); err == nil {
		t.Fatalf("expected error for expired token")
	}
}

func TestAuthService_ParseToken_WrongSubject(t *testing.T) {
	svc := newTestAuth(t, "pw")
	tok := signClaims(t, []byte(testSecret), "someone-else", time.Now().Add(time.Hour))
	if _, err := svc.ParseToken(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestAuthService_ParseToken_UnexpectedAlg(t *testing.T) {
	svc := newTestAuth(t, "pw")

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey failed: %v", err)
	}

	now := time.Now()
	tk := jwt.NewWithClaims(jwt.SigningMethodRS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   operatorSubject,
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
	tokenStr, err := tk.SignedString(privateKey)
	if err != nil {
		t.Fatalf("SignedString failed: %v", err)
	}

	if _, err := svc.ParseToken(tokenStr); err == nil {
		t.Fatalf("expected error due to unexpected signing method")
	}
}
