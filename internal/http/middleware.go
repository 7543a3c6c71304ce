package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/comptracker/comptracker-api/internal/account"
	"github.com/comptracker/comptracker-api/internal/domain"
	"github.com/comptracker/comptracker-api/internal/log"
	"github.com/comptracker/comptracker-api/internal/metrics"
	"github.com/comptracker/comptracker-api/internal/repo"
	"github.com/comptracker/comptracker-api/internal/security"
)

const (
	ctxAccount   = "account"
	ctxKind      = "session_kind"
	ctxAuthErr   = "auth_error"
	ctxRequestID = "X-Request-ID"
)

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		metrics.InFlight.Inc()
		c.Next()
		metrics.InFlight.Dec()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RequestsTotal.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.ReqDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// Session resolves the cookie-carried token to a live account on every
// request. A missing, invalid or expired token means anonymous, never an
// error; invalid cookies are cleared so a stale token self-heals on the
// next request. The same applies when the token outlives its account.
func (h *Handler) Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(cookieName)
		if err != nil || raw == "" {
			c.Next()
			return
		}
		claims, err := security.ParseSession(h.JWTSecret, raw)
		if err != nil {
			log.WithDD(c.Request.Context(), log.L()).Debug("session token rejected", zap.Error(err))
			h.clearSessionCookie(c)
			c.Next()
			return
		}
		u, err := h.Accounts.ByID(c.Request.Context(), claims.UID)
		if err != nil {
			// Storage trouble is transient: keep the cookie, treat the
			// request as anonymous and let RequireAccount report 500 on
			// routes that need the account.
			log.WithDD(c.Request.Context(), log.L()).Error("session account lookup failed", zap.Error(err))
			c.Set(ctxAuthErr, true)
			c.Next()
			return
		}
		if u == nil {
			h.clearSessionCookie(c)
			c.Next()
			return
		}
		c.Set(ctxAccount, u)
		c.Set(ctxKind, claims.Kind)
		c.Next()
	}
}

// RequireAccount gates mutating endpoints: anonymous requests get 401,
// except when session resolution itself failed, which is 500 rather
// than telling a valid session holder they are logged out.
func RequireAccount() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := currentAccount(c); !ok {
			if c.GetBool(ctxAuthErr) {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "server error"})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": account.ErrUnauthenticated.Error()})
			return
		}
		c.Next()
	}
}

// RateLimit keys the Redis fixed window by client address and route. With
// no Redis configured requests pass through.
func RateLimit(rds *repo.Redis, perMin int) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rds == nil || perMin <= 0 {
			c.Next()
			return
		}
		key := c.ClientIP() + ":" + c.FullPath()
		if !rds.Allow(c.Request.Context(), key, perMin, time.Minute) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

func currentAccount(c *gin.Context) (*domain.User, bool) {
	v, ok := c.Get(ctxAccount)
	if !ok {
		return nil, false
	}
	u, ok := v.(*domain.User)
	return u, ok && u != nil
}

func sessionKind(c *gin.Context) string {
	if k, ok := c.Get(ctxKind); ok {
		if s, ok := k.(string); ok {
			return s
		}
	}
	return ""
}

func requestID(c *gin.Context) string {
	if v, ok := c.Get(ctxRequestID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
