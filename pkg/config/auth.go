package config

import "time"

type AuthConfig struct {
	JWT JWTConfig
}

type JWTConfig struct {
	SecretKey      string
	AccessTokenTTL time.Duration
	Issuer         string
	Audience       []string
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		JWT: JWTConfig{
			SecretKey:      getEnv("JWT_SECRET_KEY", ""),
			AccessTokenTTL: getEnvDuration("JWT_ACCESS_TOKEN_TTL", 24*time.Hour),
			Issuer:         getEnv("JWT_ISSUER", "companion-api"),
			Audience:       getEnvStringSlice("JWT_AUDIENCE", []string{"companion-api"}),
		},
	}
}
