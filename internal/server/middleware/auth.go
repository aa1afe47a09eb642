// Package middleware holds HTTP middleware shared by the API routes.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

var (
	// ErrMissingToken means the request carried no usable bearer credentials.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrNoRecruiter means the token was valid but names nobody.
	ErrNoRecruiter = errors.New("token names no recruiter")
)

type recruiterKey struct{}

// Authenticator resolves a bearer token to the recruiter it was issued to.
type Authenticator interface {
	Authenticate(token string) (string, error)
}

// RejectFunc answers a request that failed authentication.
type RejectFunc func(w http.ResponseWriter, r *http.Request, err error)

// RequireBearer admits requests with a valid "Authorization: Bearer <token>" header and puts the
// recruiter on the request context. A nil reject answers with a plain 401.
func RequireBearer(auth Authenticator, reject RejectFunc) func(http.Handler) http.Handler {
	if reject == nil {
		reject = func(w http.ResponseWriter, _ *http.Request, _ error) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				reject(w, r, ErrMissingToken)
				return
			}
			name, err := auth.Authenticate(token)
			if err == nil && name == "" {
				err = ErrNoRecruiter
			}
			if err != nil {
				reject(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithRecruiter(r.Context(), name)))
		})
	}
}

// BearerToken returns the token of a bearer Authorization header. The scheme is matched
// case-insensitively.
func BearerToken(header string) (string, bool) {
	fields := strings.Fields(header)
	if len(fields) != 2 || !strings.EqualFold(fields[0], "Bearer") {
		return "", false
	}
	return fields[1], true
}

// Recruiter returns the authenticated recruiter stored on ctx.
func Recruiter(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(recruiterKey{}).(string)
	return name, ok && name != ""
}

// WithRecruiter returns a copy of ctx carrying recruiter.
func WithRecruiter(ctx context.Context, recruiter string) context.Context {
	return context.WithValue(ctx, recruiterKey{}, recruiter)
}
