package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sanctuarylabs/sanctuary-backend/internal/apierr"
	"github.com/sanctuarylabs/sanctuary-backend/internal/logger"
	"github.com/sanctuarylabs/sanctuary-backend/internal/requestdata"
	"github.com/sanctuarylabs/sanctuary-backend/internal/services"
)

type RitualHandler struct {
	log             *logger.Logger
	ritualService   services.RitualService
	genaiConfigured bool
	qlooConfigured  bool
}

func NewRitualHandler(log *logger.Logger, ritualService services.RitualService, genaiConfigured, qlooConfigured bool) *RitualHandler {
	return &RitualHandler{
		log:             log.With("handler", "RitualHandler"),
		ritualService:   ritualService,
		genaiConfigured: genaiConfigured,
		qlooConfigured:  qlooConfigured,
	}
}

func currentUserID(c *gin.Context) (uuid.UUID, error) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		return uuid.Nil, apierr.Unauthorized(apierr.CodeUnauthorized, "Not authenticated")
	}
	return rd.UserID, nil
}

func (rh *RitualHandler) AnalyzeEmotion(c *gin.Context) {
	if !rh.genaiConfigured {
		RespondError(c, apierr.Internal(apierr.CodeUpstreamConfigMissing, fmt.Errorf("generative API key not configured")))
		return
	}
	userID, err := currentUserID(c)
	if err != nil {
		RespondError(c, err)
		return
	}
	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, apierr.Validation("invalid request body"))
		return
	}

	analysis := rh.ritualService.AnalyzeEmotion(c.Request.Context(), userID, req.Text)
	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"emotional_need":    analysis.PrimaryNeed,
		"detailed_analysis": analysis,
		"user_id":           userID,
		"timestamp":         time.Now().UTC(),
	})
}

func (rh *RitualHandler) GetRitual(c *gin.Context) {
	if !rh.genaiConfigured || !rh.qlooConfigured {
		RespondError(c, apierr.Internal(apierr.CodeUpstreamConfigMissing, fmt.Errorf("required API keys not configured")))
		return
	}
	userID, err := currentUserID(c)
	if err != nil {
		RespondError(c, err)
		return
	}
	var req struct {
		Text         string         `json:"text" binding:"required"`
		ComfortMedia []string       `json:"comfort_media"`
		Preferences  map[string]any `json:"preferences"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, apierr.Validation("invalid request body"))
		return
	}

	ritual, err := rh.ritualService.CreateRitual(c.Request.Context(), userID, req.Text, req.ComfortMedia, req.Preferences)
	if err != nil {
		rh.log.Error("Ritual creation failed", "user_id", userID, "error", err)
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ritual": ritual, "success": true})
}

func (rh *RitualHandler) ListRituals(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		RespondError(c, err)
		return
	}
	rituals, err := rh.ritualService.ListRituals(c.Request.Context(), userID)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rituals": rituals, "success": true})
}

func (rh *RitualHandler) SubmitFeedback(c *gin.Context) {
	if _, err := currentUserID(c); err != nil {
		RespondError(c, err)
		return
	}
	var req struct {
		RitualID string `json:"ritual_id" binding:"required"`
		Rating   int    `json:"rating"`
		Comments string `json:"comments"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, apierr.Validation("invalid request body"))
		return
	}
	ritualID, err := uuid.Parse(req.RitualID)
	if err != nil {
		RespondError(c, apierr.Validation("invalid ritual_id"))
		return
	}
	if err := rh.ritualService.SubmitFeedback(c.Request.Context(), ritualID, req.Rating, req.Comments); err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Feedback submitted successfully",
		"ritual_id": req.RitualID,
	})
}
