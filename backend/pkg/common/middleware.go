package common

import (
	"context"
	"net/http"
	"strings"

	"github.com/centralbank/fabric-asset-api/backend/pkg/common/api"
	"github.com/golang-jwt/jwt/v5"
)

// IdentityHeader names the wallet identity a request is performed as.
const IdentityHeader = "X-FABRIC-IDENTITY"

// IdentityClaim, when present in a bearer token, must match IdentityHeader.
const IdentityClaim = "fabric_identity"

type contextKey int

const identityKey contextKey = iota

// IdentityFrom returns the identity label stored by IdentityMiddleware.
func IdentityFrom(ctx context.Context) string {
	label, _ := ctx.Value(identityKey).(string)
	return label
}

// IdentityMiddleware rejects requests without an identity label and stores
// the label in the request context.
func IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		label := strings.TrimSpace(r.Header.Get(IdentityHeader))
		if label == "" {
			api.WriteError(w, http.StatusUnauthorized, "missing_identity", IdentityHeader+" header required", "")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, label)))
	})
}

// AuthMiddleware verifies HS256 bearer tokens signed with secret.
func AuthMiddleware(secret []byte) func(http.Handler) http.Handler {
	keyFunc := func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.WriteError(w, http.StatusUnauthorized, "missing_token", "Authorization header required", "")
				return
			}
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, keyFunc, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !token.Valid {
				api.WriteError(w, http.StatusUnauthorized, "invalid_token", "Invalid or expired token", "")
				return
			}

			label := strings.TrimSpace(r.Header.Get(IdentityHeader))
			if bound, ok := claims[IdentityClaim].(string); ok && label != "" && bound != label {
				api.WriteError(w, http.StatusForbidden, "identity_mismatch", "Token is not valid for the requested identity", "")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
