package handlers

import (
	"errors"
	"net/http"

	"github.com/listafacil/apiserver/internal/services"
	"github.com/listafacil/apiserver/types"
)

// Authenticate verifies the bearer token, resolves the account it names,
// and attaches the user to the request context. Inactive and unknown
// accounts are rejected the same way as bad tokens.
func Authenticate(userService *services.UserService, jwtSecret string) func(http.Handler) http.Handler {
	secret := []byte(jwtSecret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "token not provided")
				return
			}

			userID, err := parseToken(tokenString, secret)
			if err != nil {
				if errors.Is(err, ErrMalformedToken) {
					writeError(w, http.StatusUnauthorized, "malformed token")
					return
				}
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			user, err := loadActiveUser(userService, r, userID)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
		})
	}
}

func loadActiveUser(userService *services.UserService, r *http.Request, userID int) (types.User, error) {
	user, err := userService.GetByID(r.Context(), userID)
	if err != nil {
		return types.User{}, err
	}
	if !user.IsActive {
		return types.User{}, errors.New("user is inactive")
	}
	return user, nil
}

// requireRole allows the request through only when the authenticated user's
// role is in the given set.
func requireRole(roles ...types.Role) func(http.Handler) http.Handler {
	allowed := make(map[types.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := userFromContext(r.Context())
			if err != nil {
				writeError(w, http.StatusUnauthorized, "not authenticated")
				return
			}
			if _, ok := allowed[user.Role]; !ok {
				writeError(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin admits admins only.
var RequireAdmin = requireRole(types.RoleAdmin)

// RequireStaff admits admins and front-desk (portaria) users.
var RequireStaff = requireRole(types.RoleAdmin, types.RolePortaria)
