package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pders01/feedscout/internal/dedupe"
)

func NewHandler(s Scout, version string) *Handler {
	return &Handler{scout: s, version: version}
}

func (h *Handler) Health(c *gin.Context) {
	stats := h.scout.GetCacheStats()
	relays := h.scout.GetOverallStats()
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"version":       h.version,
		"timestamp":     time.Now().Format(time.RFC3339),
		"cache_entries": stats.TotalEntries,
		"relays":        len(relays.Relays),
	})
}

func (h *Handler) Validate(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	if req.Discover {
		c.JSON(http.StatusOK, h.scout.ValidateFeedWithDiscovery(ctx, req.URL, nil))
		return
	}
	c.JSON(http.StatusOK, h.scout.ValidateFeed(ctx, req.URL))
}

func (h *Handler) Discover(c *gin.Context) {
	var req discoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, h.scout.DiscoverFromWebsite(c.Request.Context(), req.URL))
}

func (h *Handler) CheckDuplicate(c *gin.Context) {
	var req checkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, h.scout.DetectDuplicate(c.Request.Context(), req.URL, req.Feeds))
}

func (h *Handler) DuplicateGroups(c *gin.Context) {
	var req groupsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	groups := h.scout.FindDuplicateGroups(c.Request.Context(), req.Feeds)
	c.JSON(http.StatusOK, gin.H{
		"groups": groups,
		"total":  len(groups),
	})
}

func (h *Handler) RemoveDuplicates(c *gin.Context) {
	var req removeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	strategy, ok := dedupe.ParseStrategy(req.Strategy)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Unknown strategy",
			"message": "Use keep_first, keep_last, merge or user_select",
		})
		return
	}
	opts := dedupe.RemoveOptions{Strategy: strategy, Preferred: req.Preferred}
	c.JSON(http.StatusOK, h.scout.RemoveDuplicates(c.Request.Context(), req.Feeds, opts))
}

func (h *Handler) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.scout.GetCacheStats())
}

func (h *Handler) ClearCache(c *gin.Context) {
	h.scout.ClearCache()
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

func (h *Handler) RelayStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.scout.GetOverallStats())
}

func (h *Handler) RelayStatsByName(c *gin.Context) {
	name := c.Param("name")
	stat, ok := h.scout.GetProxyStatsByName(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown relay", "relay": name})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"stats":       stat,
		"successRate": stat.SuccessRate(),
	})
}

func (h *Handler) ResetStats(c *gin.Context) {
	h.scout.ResetStats()
	c.JSON(http.StatusOK, gin.H{"reset": true})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request body",
		"message": err.Error(),
	})
}
