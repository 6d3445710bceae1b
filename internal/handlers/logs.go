package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"vapor_recovery/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	errFromInvalid = "invalid 'from' time; use RFC3339 or YYYY-MM-DD"
	errToInvalid   = "invalid 'to' time; use RFC3339 or YYYY-MM-DD"
	errLimit       = "invalid 'limit'; use a positive integer"
	errRange       = "'from' must be <= 'to'"

	layoutDateTime = "2006-01-02 15:04:05"
	layoutDate     = "2006-01-02"
)

// isDateOnly reports whether the query string represents a date without time component.
func isDateOnly(s string) bool {
	return !strings.ContainsAny(s, "T ")
}

// @Summary      List logs
// @Description  Filter logs by date (RFC3339, 'YYYY-MM-DD HH:MM:SS', or 'YYYY-MM-DD'). If 'to' is date-only, it is treated as end-of-day inclusive (23:59:59.999999999Z).
// @Tags         logs
// @Produce      json
// @Param        from  query   string  false  "Start of range (RFC3339, 'YYYY-MM-DD HH:MM:SS', or 'YYYY-MM-DD')"  example(2025-08-01)
// @Param        to    query   string  false  "End of range (RFC3339, 'YYYY-MM-DD HH:MM:SS', or 'YYYY-MM-DD'). Date-only treated as end of day."  example(2025-08-31)
// @Param        type  query   string  false  "Event type"  Enums(CYCLE,ALARM,SHUTDOWN,CALIBRATION,REMOTE,FAULT,MODE_CHANGE)
// @Param        limit query   int     false  "Keep only the newest N events"
// @Success      200   {object}  map[string]interface{}  "count, events"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/logs [get]
// @Security     BearerAuth
func (h *Handler) getLogs(c *gin.Context) {
	ctx := c.Request.Context()
	// Normalize event type: trim spaces and uppercase to match expected values.
	eventType := strings.ToUpper(strings.TrimSpace(c.Query("type")))

	from, to, limit, ok := h.parseRangeQuery(c)
	if !ok {
		return
	}
	events, err := h.services.EventLog.List(ctx, service.LogFilter{
		From:  from,
		To:    to,
		Type:  eventType,
		Limit: limit,
	})
	if err != nil {
		h.respondError(c, "failed to load logs", "logs_list_failed", err, "from", from, "to", to, "type", eventType)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":  len(events),
		"events": events,
	})
}

// @Summary      Stored sensor samples
// @Description  Live and backfilled samples in time order. Same time formats as /logs.
// @Tags         logs
// @Produce      json
// @Param        from   query   string  false  "Start of range"
// @Param        to     query   string  false  "End of range"
// @Param        limit  query   int     false  "Maximum samples (default 1000)"
// @Success      200    {object}  map[string]interface{}  "count, samples"
// @Failure      400    {object}  map[string]string
// @Router       /api/v1/samples [get]
// @Security     BearerAuth
func (h *Handler) getSamples(c *gin.Context) {
	from, to, limit, ok := h.parseRangeQuery(c)
	if !ok {
		return
	}
	samples, err := h.services.Samples(c.Request.Context(), service.SampleFilter{From: from, To: to, Limit: limit})
	if err != nil {
		h.respondError(c, "failed to load samples", "samples_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":   len(samples),
		"samples": samples,
	})
}

// parseRangeQuery reads from/to/limit and writes a 400 on bad input.
func (h *Handler) parseRangeQuery(c *gin.Context) (from, to time.Time, limit int, ok bool) {
	var err error
	if qs := c.Query("from"); qs != "" {
		from, err = parseQueryTime(qs)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errFromInvalid})
			return
		}
	}
	// If only a date is provided, make 'to' end-of-day inclusive.
	if qs := c.Query("to"); qs != "" {
		to, err = parseQueryTime(qs)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errToInvalid})
			return
		}
		if isDateOnly(qs) {
			to = to.Add(24*time.Hour - time.Nanosecond).UTC()
		}
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		c.JSON(http.StatusBadRequest, gin.H{"error": errRange})
		return
	}
	if qs := c.Query("limit"); qs != "" {
		limit, err = strconv.Atoi(qs)
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": errLimit})
			return
		}
	}
	return from, to, limit, true
}

func parseQueryTime(s string) (time.Time, error) {
	// Try multiple accepted formats, normalizing to UTC.
	for _, layout := range []string{time.RFC3339, layoutDateTime, layoutDate} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf(
		"invalid time format %q, expected one of: "+
			"RFC3339 (e.g. 2025-08-27T15:04:05Z), "+
			"'YYYY-MM-DD HH:MM:SS', "+
			"'YYYY-MM-DD'",
		s,
	)
}

