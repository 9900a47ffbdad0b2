package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"presence-service/internal/metrics"
)

// ErrInvalidToken is returned for credentials that are missing, malformed, expired or revoked.
var ErrInvalidToken = errors.New("invalid token")

// AuthServiceValidator validates bearer tokens against the auth service and falls
// back to local HS256 verification when the service is not configured or unreachable.
type AuthServiceValidator struct {
	authServiceURL string
	secretKey      []byte
	httpClient     *http.Client
	logger         *zap.Logger
	metrics        *metrics.Metrics
}

func NewAuthServiceValidator(authServiceURL, secretKey string, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *AuthServiceValidator {
	return &AuthServiceValidator{
		authServiceURL: strings.TrimRight(authServiceURL, "/"),
		secretKey:      []byte(secretKey),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger:  logger,
		metrics: m,
	}
}

func (v *AuthServiceValidator) ValidateToken(ctx context.Context, tokenString string) (uuid.UUID, error) {
	if tokenString == "" {
		return uuid.Nil, ErrInvalidToken
	}

	if v.authServiceURL != "" {
		userID, err := v.validateWithAuthService(ctx, tokenString)
		if err == nil {
			return userID, nil
		}
		// A definitive rejection must not be overridden by the local check.
		if errors.Is(err, ErrInvalidToken) {
			return uuid.Nil, err
		}
		v.logger.Debug("Auth service validation failed, falling back to local", zap.Error(err))
	}

	return v.validateLocally(tokenString)
}

func (v *AuthServiceValidator) validateWithAuthService(ctx context.Context, token string) (uuid.UUID, error) {
	endpoint := v.authServiceURL + "/api/auth/validate"

	reqBody, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return uuid.Nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return uuid.Nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := v.httpClient.Do(req)
	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
	}
	v.metrics.RecordExternalAPICall("/api/auth/validate", http.MethodPost, statusCode, time.Since(start), err)
	if err != nil {
		return uuid.Nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return uuid.Nil, ErrInvalidToken
	case resp.StatusCode != http.StatusOK:
		return uuid.Nil, fmt.Errorf("auth service returned status %d", resp.StatusCode)
	}

	var result struct {
		UserID string `json:"userId"`
		Valid  *bool  `json:"valid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return uuid.Nil, err
	}
	if result.Valid != nil && !*result.Valid {
		return uuid.Nil, ErrInvalidToken
	}

	userID, err := uuid.Parse(result.UserID)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return userID, nil
}

func (v *AuthServiceValidator) validateLocally(tokenString string) (uuid.UUID, error) {
	if len(v.secretKey) == 0 {
		return uuid.Nil, ErrInvalidToken
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return v.secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return uuid.Nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, ErrInvalidToken
	}

	for _, key := range []string{"sub", "userId", "user_id"} {
		if val, ok := claims[key].(string); ok && val != "" {
			userID, err := uuid.Parse(val)
			if err != nil {
				return uuid.Nil, ErrInvalidToken
			}
			return userID, nil
		}
	}

	return uuid.Nil, ErrInvalidToken
}
