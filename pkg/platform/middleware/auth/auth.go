// Package auth establishes caller identity for mutating endpoints. The
// engine's transition operations all act on behalf of a caller account (the
// depositor, minter, or liquidator), so requests must present a bearer token
// whose subject is that account's address.
package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	id "ingot/pkg/domain"
	dErrors "ingot/pkg/domain-errors"
	"ingot/pkg/platform/httputil"
	"ingot/pkg/requestcontext"
)

// Claims are the JWT claims expected on caller tokens. The registered
// subject carries the caller's account address.
type Claims struct {
	jwt.RegisteredClaims
}

// Validator verifies bearer tokens and extracts the caller account.
type Validator struct {
	signingKey []byte
}

// NewValidator creates a Validator for HS256 tokens signed with signingKey.
func NewValidator(signingKey string) *Validator {
	return &Validator{signingKey: []byte(signingKey)}
}

// CallerFromToken validates tokenString and returns the caller account from
// its subject claim.
func (v *Validator) CallerFromToken(tokenString string) (id.AccountID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, dErrors.Newf(dErrors.CodeUnauthorized, "unexpected signing method %v", t.Header["alg"])
		}
		return v.signingKey, nil
	})
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}

	caller, err := id.ParseAccountID(claims.Subject)
	if err != nil {
		return "", dErrors.New(dErrors.CodeUnauthorized, "token subject is not an account address")
	}
	return caller, nil
}

// RequireCaller rejects requests without a valid bearer token and stores the
// caller account in the request context for handlers.
func RequireCaller(validator *Validator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
				return
			}

			caller, err := validator.CallerFromToken(token)
			if err != nil {
				if logger != nil {
					logger.WarnContext(ctx, "unauthorized request - invalid token",
						"request_id", requestcontext.RequestID(ctx),
						"error", err,
					)
				}
				httputil.WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithCaller(ctx, caller)))
		})
	}
}
