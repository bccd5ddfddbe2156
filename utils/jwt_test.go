package utils

import (
	"strings"
	"testing"

	"clariphish/config"
	"clariphish/models"
)

func TestJWTRoundTrip(t *testing.T) {
	config.AppConfig.JWTSecret = "test-secret-do-not-use"

	user := &models.User{Role: models.RoleAdmin, TokenVersion: 3}
	user.ID = 42

	access, refresh, err := GenerateJWTToken(user)
	if err != nil {
		t.Fatalf("token generation failed: %v", err)
	}
	if access == "" || refresh == "" || access == refresh {
		t.Fatal("expected two distinct non-empty tokens")
	}

	claims, err := ParseJWTToken(access)
	if err != nil {
		t.Fatalf("failed to parse access token: %v", err)
	}
	if claims.UserID != 42 || claims.Role != models.RoleAdmin || claims.TokenVersion != 3 {
		t.Errorf("claims = %+v", claims)
	}
}

func TestParseJWTTokenRejectsTampering(t *testing.T) {
	config.AppConfig.JWTSecret = "test-secret-do-not-use"

	user := &models.User{Role: models.RoleUser}
	user.ID = 1
	access, _, err := GenerateJWTToken(user)
	if err != nil {
		t.Fatalf("token generation failed: %v", err)
	}

	// Flip a character in the signature segment
	parts := strings.Split(access, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	parts[2] = string(sig)

	if _, err := ParseJWTToken(strings.Join(parts, ".")); err == nil {
		t.Error("tampered token accepted")
	}

	config.AppConfig.JWTSecret = "a-different-secret"
	if _, err := ParseJWTToken(access); err == nil {
		t.Error("token signed with another secret accepted")
	}
}

func TestValidateTargetEmail(t *testing.T) {
	if err := ValidateTargetEmail("ada@example.com"); err != nil {
		t.Errorf("valid address rejected: %v", err)
	}
	for _, bad := range []string{"not-an-email", "@example.com", "ada@"} {
		if err := ValidateTargetEmail(bad); err == nil {
			t.Errorf("invalid address %q accepted", bad)
		}
	}
}
