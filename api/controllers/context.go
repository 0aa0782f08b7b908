package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/fashionstore-backend/api/middleware"
)

func userIDFromRequest(r *http.Request) (uuid.UUID, error) {
	return middleware.AuthenticatedUserID(r.Context())
}
