package config

import (
	"fmt"
	"time"
)

// MinJWTSecretLength is the shortest HMAC secret accepted.
const MinJWTSecretLength = 32

// JWTConfig holds configuration for JWT token generation and validation.
type JWTConfig struct {
	Secret          string
	ExpirationHours int
}

// Expiration returns the token lifetime.
func (c *JWTConfig) Expiration() time.Duration {
	return time.Duration(c.ExpirationHours) * time.Hour
}

// Check validates the configuration.
func (c *JWTConfig) Check() error {
	if len(c.Secret) < MinJWTSecretLength {
		return fmt.Errorf("JWT secret must be at least %d bytes, got %d", MinJWTSecretLength, len(c.Secret))
	}
	if c.ExpirationHours < 1 {
		return fmt.Errorf("JWT expiration must be at least 1 hour, got: %d", c.ExpirationHours)
	}
	return nil
}
