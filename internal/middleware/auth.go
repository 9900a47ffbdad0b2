package middleware

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"presence-service/internal/response"
	"presence-service/internal/util"
)

// ErrMissingToken is reported when a request carries no credential at all.
var ErrMissingToken = errors.New("missing token")

const (
	accessTokenField  = "access_token"
	internalKeyHeader = "X-Internal-API-Key"

	// Beacon payloads are tiny; anything bigger is not a presence report.
	maxBodyPeek = 64 << 10
)

type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (uuid.UUID, error)
}

// AuthMiddleware authenticates the caller from, in order, the Authorization
// bearer header, the access_token query parameter, or an access_token field in
// a JSON body. The body form exists for unload beacons, which cannot set headers.
func AuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := extractToken(c)
		if err != nil {
			response.SendError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, "Unauthorized")
			return
		}

		userID, err := validator.ValidateToken(c.Request.Context(), token)
		if err != nil || userID == uuid.Nil {
			response.SendError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, "Invalid token")
			return
		}

		c.Set(util.ContextUserID, userID)
		c.Set(util.ContextToken, token)
		c.Next()
	}
}

func extractToken(c *gin.Context) (string, error) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", ErrMissingToken
		}
		return strings.TrimSpace(parts[1]), nil
	}

	if token := c.Query(accessTokenField); token != "" {
		return token, nil
	}

	if token := tokenFromBody(c.Request); token != "" {
		return token, nil
	}

	return "", ErrMissingToken
}

// tokenFromBody peeks at a JSON body for an access_token field and restores the
// body so the handler can bind it again.
func tokenFromBody(r *http.Request) string {
	if r.Body == nil || r.Method == http.MethodGet || r.Method == http.MethodHead {
		return ""
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyPeek))
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(data))
	if err != nil || len(data) == 0 {
		return ""
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return ""
	}
	return strings.TrimSpace(payload.AccessToken)
}

// InternalAuthMiddleware guards service-to-service routes with a shared key.
// An empty configured key rejects every request.
func InternalAuthMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.GetHeader(internalKeyHeader)
		if apiKey == "" || provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
			response.SendError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, "Invalid internal API key")
			return
		}
		c.Next()
	}
}
