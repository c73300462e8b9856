// backend/internal/auth/middleware.go
package auth

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"
)

// ProfileChecker reports whether a user has completed their profile.
type ProfileChecker interface {
	IsComplete(ctx context.Context, userID string) (bool, error)
}

// JWTMiddleware resolves the bearer token into an Identity. Websocket
// clients that cannot set headers may pass the token as ?token=.
func JWTMiddleware(svc *Service, profiles ProfileChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			claims, err := svc.Parse(r.Context(), raw)
			if err != nil {
				if !errors.Is(err, ErrInvalidToken) && !errors.Is(err, ErrTokenRevoked) {
					log.Printf("Error validating token: %v", err)
				}
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			id := Identity{
				UserID:    claims.UserID,
				Username:  claims.Username,
				TokenID:   claims.Id,
				ExpiresAt: time.Unix(claims.ExpiresAt, 0),
			}
			if profiles != nil {
				complete, err := profiles.IsComplete(r.Context(), id.UserID)
				if err != nil {
					log.Printf("Error checking profile for user %s: %v", id.UserID, err)
				}
				id.ProfileComplete = complete
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireProfile rejects users who have not completed their profile yet.
func RequireProfile(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := FromContext(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if !id.ProfileComplete {
			http.Error(w, "Please complete your profile to access this feature", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.Split(header, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	if t := r.URL.Query().Get("token"); t != "" {
		return t, true
	}
	return "", false
}
