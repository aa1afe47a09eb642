package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/talent-sourcer/internal/config"
	"github.com/jonathan/talent-sourcer/internal/server/middleware"
)

const testSecret = "test-secret-key"

func newTestJWTService(secret string) *JWTService {
	return NewJWTService(&config.JWTConfig{Secret: secret, ExpirationHours: 24})
}

func signed(t *testing.T, method jwt.SigningMethod, key any, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestJWTService_RoundTrip(t *testing.T) {
	svc := newTestJWTService(testSecret)

	token, err := svc.GenerateToken("  rita  ")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "rita", claims.Recruiter)
	assert.Equal(t, "rita", claims.Subject)
	assert.Equal(t, TokenIssuer, claims.Issuer)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), claims.ExpiresAt.Time, time.Minute)

	name, err := svc.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, "rita", name)
}

func TestJWTService_EmptyRecruiter(t *testing.T) {
	_, err := newTestJWTService(testSecret).GenerateToken("   ")
	assert.Error(t, err)
}

func TestJWTService_Expired(t *testing.T) {
	svc := newTestJWTService(testSecret)
	issued := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return issued }

	token, err := svc.GenerateToken("rita")
	require.NoError(t, err)

	svc.now = func() time.Time { return issued.Add(23 * time.Hour) }
	_, err = svc.ValidateToken(token)
	require.NoError(t, err)

	svc.now = func() time.Time { return issued.Add(25 * time.Hour) }
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestJWTService_Rejects(t *testing.T) {
	svc := newTestJWTService(testSecret)
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))
	valid := func(iss string, exp *jwt.NumericDate) Claims {
		return Claims{Recruiter: "rita", RegisteredClaims: jwt.RegisteredClaims{Issuer: iss, ExpiresAt: exp}}
	}
	fromOtherService, err := newTestJWTService("another-secret").GenerateToken("rita")
	require.NoError(t, err)

	tests := []struct {
		name   string
		token  string
		target error
	}{
		{"empty", "", nil},
		{"garbage", "not.a.token", jwt.ErrTokenMalformed},
		{"wrong secret", fromOtherService, jwt.ErrTokenSignatureInvalid},
		{"unsigned", signed(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid(TokenIssuer, future)), jwt.ErrTokenSignatureInvalid},
		{"other HMAC size", signed(t, jwt.SigningMethodHS512, []byte(testSecret), valid(TokenIssuer, future)), jwt.ErrTokenSignatureInvalid},
		{"foreign issuer", signed(t, jwt.SigningMethodHS256, []byte(testSecret), valid("someone-else", future)), jwt.ErrTokenInvalidIssuer},
		{"no expiry", signed(t, jwt.SigningMethodHS256, []byte(testSecret), valid(TokenIssuer, nil)), jwt.ErrTokenRequiredClaimMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateToken(tt.token)
			require.ErrorIs(t, err, ErrInvalidToken)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
		})
	}
}

func TestJWTService_WithMiddleware(t *testing.T) {
	svc := newTestJWTService(testSecret)
	token, err := svc.GenerateToken("rita")
	require.NoError(t, err)

	var seen string
	handler := middleware.RequireBearer(svc, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = middleware.Recruiter(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/jobs", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "rita", seen)
}
