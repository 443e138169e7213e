package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/kube-rca/agent/pkg/apierror"
)

// DefaultMaxBodyBytes bounds request bodies when no limit is configured.
const DefaultMaxBodyBytes int64 = 10 << 20

// rawBodyKey stores the raw request body in the request context.
type rawBodyKey struct{}

// BodyReader buffers the request body, up to maxBytes, so it can be read
// both for signature validation and for decoding. Larger bodies are
// rejected with 413.
func BodyReader(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)
				return
			}
			body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
			_ = r.Body.Close()
			if err != nil {
				apierror.BadRequest("failed to read request body").Write(w)
				return
			}
			if int64(len(body)) > maxBytes {
				apierror.New(http.StatusRequestEntityTooLarge, "request body too large").Write(w)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			ctx := context.WithValue(r.Context(), rawBodyKey{}, body)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RawBody returns the body buffered by BodyReader.
func RawBody(ctx context.Context) ([]byte, bool) {
	body, ok := ctx.Value(rawBodyKey{}).([]byte)
	return body, ok
}
