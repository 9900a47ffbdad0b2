package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type HealthHandler struct {
	db    *gorm.DB
	redis *redis.Client
	// geoState reports the geolocation breaker state; nil when geolocation is off.
	geoState func() string
}

func NewHealthHandler(db *gorm.DB, redis *redis.Client, geoState func() string) *HealthHandler {
	return &HealthHandler{
		db:       db,
		redis:    redis,
		geoState: geoState,
	}
}

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "presence-service",
	})
}

// Ready fails when the database or redis is unreachable. An open geolocation
// breaker is reported but does not fail readiness.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	sqlDB, err := h.db.DB()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"error":  "database error",
		})
		return
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"error":  "database not reachable",
		})
		return
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"error":  "redis not reachable",
			})
			return
		}
	}

	body := gin.H{"status": "ready"}
	if h.geoState != nil {
		body["geo"] = h.geoState()
	}
	c.JSON(http.StatusOK, body)
}
