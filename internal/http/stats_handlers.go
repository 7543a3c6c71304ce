package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/comptracker/comptracker-api/internal/log"
	"github.com/comptracker/comptracker-api/internal/metrics"
	"github.com/comptracker/comptracker-api/internal/stats"
)

// LeetCodeStats godoc
// @Summary Solved total and submission calendar for a LeetCode handle
// @Tags stats
// @Produce json
// @Param handle path string true "leetcode handle"
// @Success 200 {object} stats.LeetCodeStats
// @Failure 404 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Router /api/stats/leetcode/{handle} [get]
func (h *Handler) LeetCodeStats(c *gin.Context) {
	handle := c.Param("handle")
	st, err := h.Stats.LeetCode(c.Request.Context(), handle)
	if err != nil {
		h.statFetchFailed(c, "leetcode", handle, err)
		return
	}
	h.statFetched(c, "leetcode", handle, st.TotalSolved)
	c.JSON(http.StatusOK, st)
}

// CodeforcesStats godoc
// @Summary Unique solved-problem count for a Codeforces handle
// @Tags stats
// @Produce json
// @Param handle path string true "codeforces handle"
// @Success 200 {object} map[string]int
// @Failure 404 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Router /api/stats/codeforces/{handle} [get]
func (h *Handler) CodeforcesStats(c *gin.Context) {
	h.countStats(c, "codeforces", h.Stats.Codeforces)
}

// CodeChefStats godoc
// @Summary Solved-problem count for a CodeChef handle
// @Tags stats
// @Produce json
// @Param handle path string true "codechef handle"
// @Success 200 {object} map[string]int
// @Failure 404 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Router /api/stats/codechef/{handle} [get]
func (h *Handler) CodeChefStats(c *gin.Context) {
	h.countStats(c, "codechef", h.Stats.CodeChef)
}

func (h *Handler) countStats(c *gin.Context, platform string, fetch func(context.Context, string) (int, error)) {
	handle := c.Param("handle")
	n, err := fetch(c.Request.Context(), handle)
	if err != nil {
		h.statFetchFailed(c, platform, handle, err)
		return
	}
	h.statFetched(c, platform, handle, n)
	c.JSON(http.StatusOK, gin.H{"totalSolved": n})
}

// statFetched refreshes the advisory caches: the short-TTL Redis entry and,
// when the handle belongs to the current account, the stored counter.
func (h *Handler) statFetched(c *gin.Context, platform, handle string, solved int) {
	metrics.StatFetchesTotal.WithLabelValues(platform, "ok").Inc()
	h.Redis.SetStat(c.Request.Context(), platform, handle, solved, h.StatsCacheTTL)

	if u, ok := currentAccount(c); ok && u.Handles[platform] == handle {
		if err := h.Accounts.RecordStat(c.Request.Context(), u.ID.Hex(), platform, solved); err != nil {
			log.L().Warn("stat cache update failed", zap.String("platform", platform), zap.Error(err))
		}
	}
}

// statFetchFailed answers 404 for unknown handles and otherwise degrades
// to the last cached value before giving up with 502. Stale beats broken
// for a dashboard counter.
func (h *Handler) statFetchFailed(c *gin.Context, platform, handle string, err error) {
	if errors.Is(err, stats.ErrNotFound) {
		metrics.StatFetchesTotal.WithLabelValues(platform, "not_found").Inc()
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	if n, ok := h.Redis.GetStat(c.Request.Context(), platform, handle); ok {
		metrics.StatFetchesTotal.WithLabelValues(platform, "cached").Inc()
		c.JSON(http.StatusOK, gin.H{"totalSolved": n, "cached": true})
		return
	}
	if u, ok := currentAccount(c); ok && u.Handles[platform] == handle {
		metrics.StatFetchesTotal.WithLabelValues(platform, "cached").Inc()
		c.JSON(http.StatusOK, gin.H{"totalSolved": u.Stats[platform], "cached": true})
		return
	}

	metrics.StatFetchesTotal.WithLabelValues(platform, "error").Inc()
	log.WithDD(c.Request.Context(), log.L()).Warn("stat fetch failed",
		zap.String("platform", platform), zap.Error(err))
	c.JSON(http.StatusBadGateway, gin.H{"error": platform + " unavailable"})
}
