package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     JWTConfig
		wantErr string
	}{
		{"valid", JWTConfig{Secret: "s", ExpirationHours: 1}, ""},
		{"missing secret", JWTConfig{ExpirationHours: 24}, "jwt_secret"},
		{"zero lifetime", JWTConfig{Secret: "s"}, "jwt_expiration_hours"},
		{"negative lifetime", JWTConfig{Secret: "s", ExpirationHours: -1}, "jwt_expiration_hours"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
	assert.Equal(t, 48*time.Hour, (&JWTConfig{ExpirationHours: 48}).Expiration())
}

func TestServerConfig_JWTFromEnv(t *testing.T) {
	tests := []struct {
		name      string
		secret    string
		hours     string
		wantHours int
		wantErr   bool
	}{
		{name: "no secret disables auth"},
		{name: "default lifetime", secret: "shh", wantHours: 24},
		{name: "custom lifetime", secret: "shh", hours: "48", wantHours: 48},
		{name: "non-numeric lifetime", secret: "shh", hours: "soon", wantErr: true},
		{name: "zero lifetime", secret: "shh", hours: "0", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", tt.secret)
			t.Setenv("JWT_EXPIRATION_HOURS", tt.hours)
			t.Chdir(t.TempDir())

			v, err := NewViper("")
			require.NoError(t, err)
			cfg, err := Load(v)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			jwt := cfg.Server.JWT()
			if tt.secret == "" {
				assert.Nil(t, jwt)
				return
			}
			require.NotNil(t, jwt)
			assert.Equal(t, tt.wantHours, jwt.ExpirationHours)
		})
	}
}
