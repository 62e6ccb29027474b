package middleware

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/cloo-solutions/knowpool/internal/api"
)

type contextKey string

const ClientIDKey contextKey = "client_id"

// APIKeyAuth accepts requests bearing one of keys. With no keys configured
// every request passes unauthenticated.
func APIKeyAuth(keys []string) func(http.Handler) http.Handler {
	digests := make([][]byte, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			sum := sha256.Sum256([]byte(k))
			digests = append(digests, sum[:])
		}
	}

	return func(next http.Handler) http.Handler {
		if len(digests) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				api.Error(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			sum := sha256.Sum256([]byte(strings.TrimPrefix(authHeader, "Bearer ")))
			if !matchesAny(digests, sum[:]) {
				api.Error(w, http.StatusUnauthorized, "invalid api key")
				return
			}

			clientID := hex.EncodeToString(sum[:4])
			ctx := context.WithValue(r.Context(), ClientIDKey, clientID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// matchesAny compares against every digest so timing does not reveal which key matched.
func matchesAny(digests [][]byte, candidate []byte) bool {
	matched := 0
	for _, d := range digests {
		matched |= subtle.ConstantTimeCompare(d, candidate)
	}
	return matched == 1
}

// GetClientID returns a short fingerprint of the key that authenticated the request.
func GetClientID(ctx context.Context) string {
	clientID, _ := ctx.Value(ClientIDKey).(string)
	return clientID
}
