package activity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const defaultBeaconTimeout = 10 * time.Second

// TokenFunc returns the current bearer credential.
type TokenFunc func() string

type reportBody struct {
	Status      Status `json:"status"`
	PagePath    string `json:"page_path,omitempty"`
	AccessToken string `json:"access_token,omitempty"`
}

// HTTPReporter posts presence reports to the presence endpoint. Failures are
// logged and never surfaced to the caller.
type HTTPReporter struct {
	endpoint      string
	token         TokenFunc
	httpClient    *http.Client
	logger        *zap.Logger
	beaconTimeout time.Duration
}

// NewHTTPReporter creates a reporter for endpoint (for example
// https://api.example.com/api/presence). client and logger may be nil.
func NewHTTPReporter(endpoint string, token TokenFunc, client *http.Client, logger *zap.Logger) *HTTPReporter {
	if client == nil {
		client = &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPReporter{
		endpoint:      endpoint,
		token:         token,
		httpClient:    client,
		logger:        logger,
		beaconTimeout: defaultBeaconTimeout,
	}
}

// Report sends status with the bearer credential in the Authorization header.
func (r *HTTPReporter) Report(ctx context.Context, status Status, pagePath string) {
	token := r.token()
	if token == "" {
		r.logger.Debug("Skipping presence report without credential")
		return
	}

	body, err := json.Marshal(reportBody{Status: status, PagePath: pagePath})
	if err != nil {
		r.logger.Warn("Failed to encode presence report", zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		r.logger.Warn("Failed to build presence request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	if err := r.do(req); err != nil {
		r.logger.Warn("Presence report failed", zap.String("status", string(status)), zap.Error(err))
	}
}

// Beacon sends status in the background on a context detached from any caller,
// so it completes even when the session is torn down. The credential travels in
// the body because the request may be replayed without custom headers.
func (r *HTTPReporter) Beacon(status Status, pagePath string) {
	token := r.token()
	if token == "" {
		r.logger.Debug("Skipping presence beacon without credential")
		return
	}

	body, err := json.Marshal(reportBody{Status: status, PagePath: pagePath, AccessToken: token})
	if err != nil {
		r.logger.Warn("Failed to encode presence beacon", zap.Error(err))
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.beaconTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
		if err != nil {
			r.logger.Warn("Failed to build presence beacon", zap.Error(err))
			return
		}
		req.Header.Set("Content-Type", "text/plain;charset=UTF-8")

		if err := r.do(req); err != nil {
			r.logger.Warn("Presence beacon failed", zap.String("status", string(status)), zap.Error(err))
		}
	}()
}

func (r *HTTPReporter) do(req *http.Request) error {
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
