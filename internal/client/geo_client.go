package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"presence-service/internal/config"
	"presence-service/internal/domain"
	"presence-service/internal/metrics"
	"presence-service/internal/util"
)

var (
	// ErrGeoUnavailable is returned when the provider could not be reached or the breaker is open.
	ErrGeoUnavailable = errors.New("geolocation unavailable")
	// ErrGeoNotFound is returned when the provider answered but could not place the address.
	ErrGeoNotFound = errors.New("geolocation not found")
	// ErrPrivateAddress is returned for addresses that are not publicly routable.
	ErrPrivateAddress = errors.New("address is not public")
)

const geoFields = "status,message,countryCode,country,city"

// GeoLocator resolves a public IP address to a coarse location.
type GeoLocator interface {
	Lookup(ctx context.Context, ip string) (*domain.GeoLocation, error)
}

type ipAPIResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	CountryCode string `json:"countryCode"`
	Country     string `json:"country"`
	City        string `json:"city"`
}

// GeoClient queries an ip-api.com compatible endpoint. Results are cached in redis,
// concurrent lookups for one address share a request, and repeated provider failures
// open a circuit breaker so presence reports stop paying the lookup latency.
type GeoClient struct {
	baseURL    string
	httpClient *http.Client
	cache      *redis.Client
	cacheTTL   time.Duration
	breaker    *gobreaker.CircuitBreaker
	group      singleflight.Group
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// NewGeoClient creates a GeoClient. cache may be nil.
func NewGeoClient(cfg config.GeoConfig, cache *redis.Client, logger *zap.Logger, m *metrics.Metrics) *GeoClient {
	c := &GeoClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cache:    cache,
		cacheTTL: cfg.CacheTTL,
		logger:   logger,
		metrics:  m,
	}

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "geo",
		MaxRequests: cfg.BreakerHalfOpens,
		Timeout:     cfg.BreakerOpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Geolocation circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		// An answer that could not place the address still proves the provider is up.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrGeoNotFound)
		},
	})

	return c
}

// Lookup resolves ip. Callers treat every error as "no location".
func (c *GeoClient) Lookup(ctx context.Context, ip string) (*domain.GeoLocation, error) {
	ip, ok := util.PublicIP(ip)
	if !ok {
		c.metrics.RecordGeoLookup("skipped")
		return nil, ErrPrivateAddress
	}

	if loc, ok := c.fromCache(ctx, ip); ok {
		c.metrics.RecordGeoLookup("cached")
		return loc, nil
	}

	// The shared fetch outlives any single caller; httpClient.Timeout bounds it.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(ip, func() (interface{}, error) {
		return c.breaker.Execute(func() (interface{}, error) {
			return c.fetch(fetchCtx, ip)
		})
	})

	var (
		v   interface{}
		err error
	)
	select {
	case res := <-ch:
		v, err = res.Val, res.Err
	case <-ctx.Done():
		c.metrics.RecordGeoLookup("canceled")
		return nil, ctx.Err()
	}
	if err != nil {
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			c.metrics.RecordGeoLookup("circuit_open")
			return nil, fmt.Errorf("%w: %v", ErrGeoUnavailable, err)
		case errors.Is(err, ErrGeoNotFound):
			c.metrics.RecordGeoLookup("not_found")
		default:
			c.metrics.RecordGeoLookup("failed")
		}
		return nil, err
	}

	loc := v.(*domain.GeoLocation)
	c.metrics.RecordGeoLookup("resolved")
	c.toCache(ctx, ip, loc)
	return loc, nil
}

func (c *GeoClient) fetch(ctx context.Context, ip string) (*domain.GeoLocation, error) {
	endpoint := fmt.Sprintf("%s/%s?fields=%s", c.baseURL, url.PathEscape(ip), geoFields)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
	}
	c.metrics.RecordExternalAPICall(req.URL.Path, http.MethodGet, statusCode, duration, err)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeoUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: provider returned status %d", ErrGeoUnavailable, resp.StatusCode)
	}

	var body ipAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: invalid response: %v", ErrGeoUnavailable, err)
	}
	if body.Status != "success" || body.CountryCode == "" {
		return nil, fmt.Errorf("%w: %s", ErrGeoNotFound, body.Message)
	}

	return &domain.GeoLocation{
		CountryCode: body.CountryCode,
		CountryName: body.Country,
		City:        body.City,
	}, nil
}

func cacheKey(ip string) string {
	return "geo:ip:" + ip
}

func (c *GeoClient) fromCache(ctx context.Context, ip string) (*domain.GeoLocation, bool) {
	if c.cache == nil {
		return nil, false
	}
	data, err := c.cache.Get(ctx, cacheKey(ip)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Debug("Geo cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var loc domain.GeoLocation
	if err := json.Unmarshal(data, &loc); err != nil {
		return nil, false
	}
	return &loc, true
}

func (c *GeoClient) toCache(ctx context.Context, ip string, loc *domain.GeoLocation) {
	if c.cache == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(loc)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, cacheKey(ip), data, c.cacheTTL).Err(); err != nil {
		c.logger.Debug("Geo cache write failed", zap.Error(err))
	}
}

// State exposes the breaker state for readiness reporting.
func (c *GeoClient) State() string {
	return c.breaker.State().String()
}
