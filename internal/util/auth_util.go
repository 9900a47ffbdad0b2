package util

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"presence-service/internal/response"
)

// Context keys set by the auth middleware.
const (
	ContextUserID = "user_id"
	ContextToken  = "jwtToken"
)

// AuthData holds the authenticated user ID and the raw bearer token.
type AuthData struct {
	UserID uuid.UUID
	Token  string
}

// ExtractAuthData reads the values stored by the auth middleware. On failure it
// writes a 401 and returns false, so handlers can simply return.
func ExtractAuthData(c *gin.Context) (AuthData, bool) {
	userID, exists := c.Get(ContextUserID)
	if !exists {
		response.SendError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, "Unauthorized")
		return AuthData{}, false
	}
	userUUID, ok := userID.(uuid.UUID)
	if !ok || userUUID == uuid.Nil {
		response.SendError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, "Unauthorized")
		return AuthData{}, false
	}

	token, _ := c.Get(ContextToken)
	tokenStr, _ := token.(string)

	return AuthData{
		UserID: userUUID,
		Token:  tokenStr,
	}, true
}
