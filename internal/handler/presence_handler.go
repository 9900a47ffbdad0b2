package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"presence-service/internal/domain"
	"presence-service/internal/response"
	"presence-service/internal/service"
	"presence-service/internal/util"
)

const defaultOnlineWindow = 5 * time.Minute

// ReportPresenceRequest is the body of POST /api/presence. AccessToken is only
// present on unload beacons and has already been consumed by the auth middleware.
type ReportPresenceRequest struct {
	Status      string `json:"status" binding:"required,oneof=online away offline"`
	PagePath    string `json:"page_path"`
	AccessToken string `json:"access_token,omitempty"`
}

type PresenceHandler struct {
	presenceService service.PresenceService
	logger          *zap.Logger
}

func NewPresenceHandler(presenceService service.PresenceService, logger *zap.Logger) *PresenceHandler {
	return &PresenceHandler{
		presenceService: presenceService,
		logger:          logger,
	}
}

// ReportPresence stores the caller's current activity state.
// @Router /presence [post]
func (h *PresenceHandler) ReportPresence(c *gin.Context) {
	auth, ok := util.ExtractAuthData(c)
	if !ok {
		return
	}

	var req ReportPresenceRequest
	// Beacons arrive as text/plain, so the body is always decoded as JSON.
	if err := c.ShouldBindJSON(&req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid status")
			return
		}
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid request body")
		return
	}

	channel := "request"
	if req.AccessToken != "" {
		channel = "beacon"
	}

	loc, err := h.presenceService.Report(c.Request.Context(), domain.PresenceReport{
		UserID:    auth.UserID,
		Status:    domain.PresenceStatus(req.Status),
		PagePath:  req.PagePath,
		UserAgent: c.Request.UserAgent(),
		ClientIP:  util.ClientIP(c.Request.Header),
		Channel:   channel,
	})
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"geo":     loc,
	})
}

// GetMyPresence returns the caller's stored presence record.
// @Router /presence/me [get]
func (h *PresenceHandler) GetMyPresence(c *gin.Context) {
	auth, ok := util.ExtractAuthData(c)
	if !ok {
		return
	}

	presence, err := h.presenceService.GetPresence(c.Request.Context(), auth.UserID)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, presence)
}

// GetOnlineUsers lists users online or away within ?since= (a Go duration, default 5m).
// @Router /presence/online [get]
func (h *PresenceHandler) GetOnlineUsers(c *gin.Context) {
	window := defaultOnlineWindow
	if raw := c.Query("since"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid since duration")
			return
		}
		window = d
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	presences, err := h.presenceService.ListActive(c.Request.Context(), window, limit)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, presences)
}
