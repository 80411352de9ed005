package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "a-test-secret-that-is-long-enough-123"

func TestGenerateAndValidateToken(t *testing.T) {
	token, err := GenerateToken("performer_1", RolePerformer, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	claims, err := ValidateToken(token, testSecret)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.UserID != "performer_1" || claims.Role != RolePerformer {
		t.Errorf("claims = %+v", claims)
	}
	if claims.IsAdmin() {
		t.Error("performer reported as admin")
	}
}

func TestValidateToken_Rejections(t *testing.T) {
	valid, _ := GenerateToken("user_1", RoleTipper, testSecret, time.Hour)
	expired, _ := GenerateToken("user_1", RoleTipper, testSecret, -time.Minute)
	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: "user_1"}).SignedString([]byte(testSecret))
	noUser, _ := GenerateToken("", RoleTipper, testSecret, time.Hour)

	tests := []struct {
		name   string
		token  string
		secret string
	}{
		{name: "wrong secret", token: valid, secret: "another-secret-entirely-000000000"},
		{name: "expired", token: expired, secret: testSecret},
		{name: "missing expiry", token: noExpiry, secret: testSecret},
		{name: "missing user", token: noUser, secret: testSecret},
		{name: "garbage", token: "not.a.token", secret: testSecret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ValidateToken(tt.token, tt.secret); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("ValidateToken() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestValidateToken_EmptySecret(t *testing.T) {
	if _, err := ValidateToken("anything", ""); err == nil {
		t.Error("expected error with empty secret")
	}
	if _, err := GenerateToken("u", RoleAdmin, "", time.Hour); err == nil {
		t.Error("expected error with empty secret")
	}
}
