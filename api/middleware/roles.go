package middleware

import (
	"net/http"

	"github.com/angelmondragon/fashionstore-backend/api/responses"
	"github.com/angelmondragon/fashionstore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fashionstore-backend/pkg/errors"
	"github.com/angelmondragon/fashionstore-backend/pkg/logger"
)

func RequireRole(role enums.UserRole, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if RoleFromContext(r.Context()) != string(role) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, forbiddenMessage(role)))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func forbiddenMessage(role enums.UserRole) string {
	if role == enums.UserRoleAdmin {
		return "Access denied. Admin only."
	}
	return "Access denied."
}
