package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/irfandhamhudi/APi-FocusFlow/logging"
	"github.com/irfandhamhudi/APi-FocusFlow/models"
	"github.com/irfandhamhudi/APi-FocusFlow/services"
)

type contextKey string

const userContextKey contextKey = "authUser"

// JWTAuthMiddleware authenticates the request from the jwt cookie or a
// Bearer header, loads the account and stores it in the request context.
func JWTAuthMiddleware(jwtService *services.JWTService, users services.UserRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := ""
			if cookie, err := r.Cookie("jwt"); err == nil {
				tokenStr = cookie.Value
			}
			if tokenStr == "" {
				authHeader := r.Header.Get("Authorization")
				tokenStr = strings.TrimPrefix(authHeader, "Bearer ")
				if tokenStr == authHeader {
					tokenStr = ""
				}
			}
			if tokenStr == "" {
				logging.Logger.Warnf("Event ID: JWT_AUTH_MISSING_TOKEN, Description: No credentials for request to %s %s", r.Method, r.URL.Path)
				respondJSON(w, http.StatusUnauthorized, "No token provided, unauthorized")
				return
			}

			claims, err := jwtService.ValidateAuthToken(tokenStr)
			if err != nil {
				logging.Logger.Warnf("Event ID: JWT_AUTH_INVALID_TOKEN, Description: Invalid token for request to %s %s: %v", r.Method, r.URL.Path, err)
				respondJSON(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			userID, err := primitive.ObjectIDFromHex(claims.UserID)
			if err != nil {
				respondJSON(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			user, err := users.FindByID(r.Context(), userID)
			if err != nil {
				if errors.Is(err, mongo.ErrNoDocuments) {
					respondJSON(w, http.StatusNotFound, "User not found")
					return
				}
				logging.Logger.Errorf("Event ID: JWT_AUTH_USER_LOOKUP_FAILED, Description: Failed to load user %s: %v", claims.UserID, err)
				respondJSON(w, http.StatusInternalServerError, "Server error")
				return
			}
			if !user.IsVerified {
				respondJSON(w, http.StatusUnauthorized, "User not verified")
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext returns the authenticated account stored by the middleware.
func UserFromContext(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(userContextKey).(models.User)
	return user, ok
}

func respondJSON(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"message": message,
	})
}
