package handlers

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"musichub/internal/auth"
	"musichub/internal/handlers/render"
	"musichub/internal/metrics"
	"musichub/internal/store"
)

type activityRequest struct {
	SongID   string  `json:"songId"`
	SongName string  `json:"songName"`
	Artist   string  `json:"artist"`
	Language string  `json:"language"`
	Genre    string  `json:"genre"`
	Query    string  `json:"query"`
	Duration float64 `json:"duration"`
	SkipTime float64 `json:"skipTime"`
}

// LogActivity handles POST /api/activity/:type. The append to the
// activity log is the durable anchor: its failure is a 500, while the
// derived-aggregate fan-out inside the store absorbs its own failures.
func (h *Handlers) LogActivity(c *gin.Context) {
	uid := auth.UID(c)
	eventType := c.Param("type")
	if !store.ValidActivityType(eventType) {
		render.BadRequest(c, "unknown activity type: "+eventType)
		return
	}

	var req activityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		render.ErrorDetails(c, 400, "invalid_request", "malformed request body", err.Error())
		return
	}
	if (eventType == store.ActivityPlay || eventType == store.ActivitySkip) && req.SongID == "" {
		render.BadRequest(c, "songId is required for "+eventType+" events")
		return
	}

	event := store.ActivityEvent{
		Type:     eventType,
		SongID:   req.SongID,
		SongName: req.SongName,
		Artist:   req.Artist,
		Language: req.Language,
		Genre:    req.Genre,
		Query:    req.Query,
		Duration: req.Duration,
		SkipTime: req.SkipTime,
	}
	pushID, err := h.users.LogActivity(c.Request.Context(), uid, event)
	if err != nil {
		slog.Error("activity append failed", "uid", uid, "type", eventType, "error", err)
		render.Internal(c, "could not record activity")
		return
	}
	metrics.RecordActivityEvent(eventType)

	render.OK(c, gin.H{"id": pushID, "event": event})
}

// ActivityHistory handles GET /api/activity/history with optional type
// filtering.
func (h *Handlers) ActivityHistory(c *gin.Context) {
	uid := auth.UID(c)
	limit := intQuery(c, "limit", 50, 1, 200)
	typeFilter := c.Query("type")
	if typeFilter != "" && !store.ValidActivityType(typeFilter) {
		render.BadRequest(c, "unknown activity type: "+typeFilter)
		return
	}

	events, err := h.users.RecentActivity(c.Request.Context(), uid, limit)
	if err != nil {
		slog.Error("activity history read failed", "uid", uid, "error", err)
		render.Internal(c, "could not load activity history")
		return
	}
	if typeFilter != "" {
		filtered := events[:0]
		for _, ev := range events {
			if ev.Type == typeFilter {
				filtered = append(filtered, ev)
			}
		}
		events = filtered
	}
	render.OK(c, events)
}
