package config

import (
	"errors"
	"fmt"
	"time"
)

// JWTConfig holds the signing secret and lifetime of recruiter tokens.
type JWTConfig struct {
	Secret          string
	ExpirationHours int
}

// Validate rejects an empty secret or a lifetime under one hour.
func (c *JWTConfig) Validate() error {
	if c.Secret == "" {
		return errors.New("'server.jwt_secret' cannot be empty")
	}
	if c.ExpirationHours < 1 {
		return fmt.Errorf("'server.jwt_expiration_hours' must be at least 1, got %d", c.ExpirationHours)
	}
	return nil
}

// Expiration is the token lifetime.
func (c *JWTConfig) Expiration() time.Duration {
	return time.Duration(c.ExpirationHours) * time.Hour
}
