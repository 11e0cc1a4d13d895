package auth

import (
	"testing"
	"time"

	"github.com/verso-labs/companion/pkg/config"
)

func testJWTConfig() *config.JWTConfig {
	return &config.JWTConfig{
		SecretKey:      "test-secret-key-at-least-32-characters",
		AccessTokenTTL: time.Hour,
		Issuer:         "companion-api",
		Audience:       []string{"companion-api"},
	}
}

func TestGenerateAndValidateAccessToken(t *testing.T) {
	svc := NewJWTServiceFromConfig(testJWTConfig())

	token, err := svc.GenerateAccessToken("user-1", "ada@example.com", "Ada")
	if err != nil {
		t.Fatal(err)
	}

	authCtx, err := svc.ValidateAccessToken(token)
	if err != nil {
		t.Fatal(err)
	}

	if authCtx.UserID != "user-1" || authCtx.Email != "ada@example.com" || authCtx.Name != "Ada" {
		t.Errorf("decoded identity = %+v", authCtx)
	}
	if !authCtx.IsValid() {
		t.Error("decoded context must be valid")
	}
}

func TestValidateRejectsWrongKey(t *testing.T) {
	issuer := NewJWTServiceFromConfig(testJWTConfig())

	otherCfg := testJWTConfig()
	otherCfg.SecretKey = "another-secret-key-also-32-characters!"
	validator := NewJWTServiceFromConfig(otherCfg)

	token, err := issuer.GenerateAccessToken("user-1", "ada@example.com", "Ada")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := validator.ValidateAccessToken(token); err == nil {
		t.Error("token signed with a different key must be rejected")
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	cfg := testJWTConfig()
	cfg.AccessTokenTTL = -time.Minute
	svc := NewJWTServiceFromConfig(cfg)

	token, err := svc.GenerateAccessToken("user-1", "ada@example.com", "Ada")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.ValidateAccessToken(token); err == nil {
		t.Error("expired token must be rejected")
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	svc := NewJWTServiceFromConfig(testJWTConfig())

	if _, err := svc.ValidateAccessToken("not-a-token"); err == nil {
		t.Error("malformed token must be rejected")
	}
}
