package auth

import (
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/user/accountd/apperror"
)

// TokenVerifier verifies bearer tokens. *TokenManager implements it.
type TokenVerifier interface {
	Verify(tokenString string) (*Claims, error)
}

// JWTMiddleware requires a valid "Authorization: Bearer <token>" header and
// stores the verified claims in the request context. Every rejection gets the
// same 401 response; the reason is only logged.
func JWTMiddleware(verifier TokenVerifier, log logrus.FieldLogger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reject := func(reason string, err error) {
				log.WithFields(logrus.Fields{
					"path":   r.URL.Path,
					"reason": reason,
				}).WithError(err).Debug("rejected request")
				apperror.WriteError(w, r, log, apperror.NewUnauthorizedError("unauthorized", err))
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				reject("missing authorization header", nil)
				return
			}

			scheme, tokenString, found := strings.Cut(authHeader, " ")
			if !found || !strings.EqualFold(scheme, "bearer") || tokenString == "" || strings.Contains(tokenString, " ") {
				reject("malformed authorization header", nil)
				return
			}

			claims, err := verifier.Verify(tokenString)
			if err != nil {
				reject("invalid token", err)
				return
			}

			next.ServeHTTP(w, r.WithContext(NewContextWithClaims(r.Context(), claims)))
		})
	}
}
