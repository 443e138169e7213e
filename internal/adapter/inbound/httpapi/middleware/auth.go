package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/kube-rca/agent/pkg/apierror"
)

// BearerAuth rejects requests whose Authorization header does not carry
// secret as a Bearer token. An empty secret disables the check.
func BearerAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		want := []byte(secret)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, problem := bearerToken(r.Header.Get("Authorization"))
			if problem == "" && subtle.ConstantTimeCompare([]byte(token), want) != 1 {
				problem = "invalid bearer token"
			}
			if problem != "" {
				apierror.Unauthorized(problem).Write(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken extracts the token from an Authorization header value. The
// second result describes what is wrong with the header, if anything.
func bearerToken(header string) (string, string) {
	if header == "" {
		return "", "missing authorization header"
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", "invalid authorization header format"
	}
	return strings.TrimSpace(token), ""
}
