package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret")

func signHS256(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return s
}

func bearer(token string) *AuthRequest {
	return &AuthRequest{Headers: map[string][]string{"Authorization": {"Bearer " + token}}}
}

func TestJWTAuthenticator_Supports(t *testing.T) {
	auth := NewJWTAuthenticator(JWTConfig{Secret: testSecret})

	if auth.Name() != "jwt" {
		t.Errorf("Name() = %v, want jwt", auth.Name())
	}

	tests := []struct {
		name    string
		headers map[string][]string
		want    bool
	}{
		{
			name:    "no authorization header",
			headers: map[string][]string{},
			want:    false,
		},
		{
			name:    "bearer token",
			headers: map[string][]string{"Authorization": {"Bearer token123"}},
			want:    true,
		},
		{
			name:    "lowercase scheme",
			headers: map[string][]string{"Authorization": {"bearer token123"}},
			want:    true,
		},
		{
			name:    "empty token",
			headers: map[string][]string{"Authorization": {"Bearer   "}},
			want:    false,
		},
		{
			name:    "wrong prefix",
			headers: map[string][]string{"Authorization": {"Basic abc123"}},
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &AuthRequest{Headers: tt.headers}
			if got := auth.Supports(context.Background(), req); got != tt.want {
				t.Errorf("Supports() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJWTAuthenticator_ValidToken(t *testing.T) {
	auth := NewJWTAuthenticator(JWTConfig{
		Secret:   testSecret,
		Issuer:   "ops",
		Audience: "apicache",
	})

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := signHS256(t, testSecret, jwt.MapClaims{
		"sub":   "alice",
		"iss":   "ops",
		"aud":   "apicache",
		"exp":   exp.Unix(),
		"roles": []string{RoleCacheAdmin, "viewer"},
	})

	result, err := auth.Authenticate(context.Background(), bearer(token))
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if !result.Authenticated {
		t.Fatalf("Authenticated = false, error = %v", result.Error)
	}

	id := result.Identity
	if id.Principal != "alice" {
		t.Errorf("Principal = %q, want alice", id.Principal)
	}
	if !id.HasRole(RoleCacheAdmin) || !id.HasRole("viewer") {
		t.Errorf("Roles = %v", id.Roles)
	}
	if !id.ExpiresAt.Equal(exp) {
		t.Errorf("ExpiresAt = %v, want %v", id.ExpiresAt, exp)
	}
	if id.IsExpired() {
		t.Error("IsExpired() = true")
	}
}

func TestJWTAuthenticator_Rejections(t *testing.T) {
	auth := NewJWTAuthenticator(JWTConfig{Secret: testSecret, Issuer: "ops"})
	future := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name    string
		token   func(t *testing.T) string
		wantErr error
	}{
		{
			name: "expired",
			token: func(t *testing.T) string {
				return signHS256(t, testSecret, jwt.MapClaims{
					"sub": "a", "iss": "ops", "exp": time.Now().Add(-time.Hour).Unix(),
				})
			},
			wantErr: ErrTokenExpired,
		},
		{
			name: "wrong secret",
			token: func(t *testing.T) string {
				return signHS256(t, []byte("other"), jwt.MapClaims{"sub": "a", "iss": "ops", "exp": future})
			},
			wantErr: ErrInvalidCredentials,
		},
		{
			name: "wrong issuer",
			token: func(t *testing.T) string {
				return signHS256(t, testSecret, jwt.MapClaims{"sub": "a", "iss": "evil", "exp": future})
			},
			wantErr: ErrInvalidCredentials,
		},
		{
			name: "missing exp",
			token: func(t *testing.T) string {
				return signHS256(t, testSecret, jwt.MapClaims{"sub": "a", "iss": "ops"})
			},
			wantErr: ErrInvalidCredentials,
		},
		{
			name: "none algorithm",
			token: func(t *testing.T) string {
				s, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
					"sub": "a", "iss": "ops", "exp": future,
				}).SignedString(jwt.UnsafeAllowNoneSignatureType)
				if err != nil {
					t.Fatal(err)
				}
				return s
			},
			wantErr: ErrInvalidCredentials,
		},
		{
			name:    "garbage",
			token:   func(*testing.T) string { return "not.a.jwt" },
			wantErr: ErrTokenMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := auth.Authenticate(context.Background(), bearer(tt.token(t)))
			if err != nil {
				t.Fatalf("Authenticate() error = %v", err)
			}
			if result.Authenticated {
				t.Fatal("Authenticated = true, want false")
			}
			if !errors.Is(result.Error, tt.wantErr) {
				t.Errorf("Error = %v, want %v", result.Error, tt.wantErr)
			}
		})
	}
}

func TestJWTAuthenticator_MissingToken(t *testing.T) {
	auth := NewJWTAuthenticator(JWTConfig{Secret: testSecret})
	result, err := auth.Authenticate(context.Background(), &AuthRequest{})
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if !errors.Is(result.Error, ErrMissingCredentials) {
		t.Errorf("Error = %v, want ErrMissingCredentials", result.Error)
	}
}
