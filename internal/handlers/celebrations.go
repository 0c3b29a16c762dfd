package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"church-portal/internal/celebrations"
	"church-portal/internal/digest"
	"church-portal/internal/logging"
	"church-portal/internal/repositories"
)

const dateLayout = "2006-01-02"

// CelebrationHandler serves the weekly celebration views.
type CelebrationHandler struct {
	digests *digest.Service
	week    celebrations.WeekConfig
	now     func() time.Time
}

// NewCelebrationHandler builds a CelebrationHandler.
func NewCelebrationHandler(digests *digest.Service, week celebrations.WeekConfig) *CelebrationHandler {
	return &CelebrationHandler{digests: digests, week: week, now: time.Now}
}

// Weekly returns this week's and next week's celebrations and events around
// ?date=YYYY-MM-DD, or today.
func (h *CelebrationHandler) Weekly(c *gin.Context) {
	ref, ok := h.reference(c)
	if !ok {
		return
	}

	weekly, err := h.digests.Weekly(c.Request.Context(), ref)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, weekly)
}

// Digest renders the weekly view as plain text.
func (h *CelebrationHandler) Digest(c *gin.Context) {
	ref, ok := h.reference(c)
	if !ok {
		return
	}

	text, err := h.digests.Render(c.Request.Context(), ref)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.String(http.StatusOK, text)
}

func (h *CelebrationHandler) reference(c *gin.Context) (time.Time, bool) {
	loc := h.week.Location
	if loc == nil {
		loc = time.UTC
	}
	raw := c.Query("date")
	if raw == "" {
		return h.now().In(loc), true
	}
	ref, err := time.ParseInLocation(dateLayout, raw, loc)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return time.Time{}, false
	}
	return ref, true
}

func (h *CelebrationHandler) writeError(c *gin.Context, err error) {
	if repositories.IsUnavailable(err) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "directory unavailable, retry later"})
		return
	}
	logging.FromContext(c.Request.Context()).Error("celebrations request failed", logging.Err(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load celebrations"})
}
