package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/samber/oops"

	"go-account-service/internal/model"
	"go-account-service/internal/token"
)

type sessionVerifier interface {
	VerifySession(tokenString string) (*model.SessionClaims, error)
}

type contextKey string

const sessionClaimsContextKey contextKey = "session_claims"

// AuthMiddleware is the auth gate in front of account-read routes. It holds
// no state beyond the verifier.
type AuthMiddleware struct {
	verifier sessionVerifier
}

func NewAuthMiddleware(verifier sessionVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bearer, ok := bearerToken(r)
		if !ok {
			writeError(w, oops.Code("MISSING_TOKEN").Wrap(model.ErrMissingToken))
			return
		}

		claims, err := m.verifier.VerifySession(bearer)
		if err != nil {
			slog.DebugContext(r.Context(), "session token rejected", "reason", token.KindOf(err).String())
			writeError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), sessionClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func ClaimsFromContext(ctx context.Context) (*model.SessionClaims, bool) {
	claims, ok := ctx.Value(sessionClaimsContextKey).(*model.SessionClaims)
	return claims, ok
}

// WithClaims returns a copy of ctx carrying claims, for handlers mounted
// behind RequireAuth and their tests.
func WithClaims(ctx context.Context, claims *model.SessionClaims) context.Context {
	return context.WithValue(ctx, sessionClaimsContextKey, claims)
}

// bearerToken extracts the credential from "Authorization: Bearer <token>".
// Any other scheme or a blank credential counts as missing.
func bearerToken(r *http.Request) (string, bool) {
	scheme, credential, found := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}

	credential = strings.TrimSpace(credential)
	return credential, credential != ""
}
