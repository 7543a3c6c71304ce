package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/comptracker/comptracker-api/internal/account"
	"github.com/comptracker/comptracker-api/internal/domain"
	"github.com/comptracker/comptracker-api/internal/helper"
	"github.com/comptracker/comptracker-api/internal/log"
	"github.com/comptracker/comptracker-api/internal/oauth"
	"github.com/comptracker/comptracker-api/internal/queue"
	"github.com/comptracker/comptracker-api/internal/repo"
	"github.com/comptracker/comptracker-api/internal/security"
	"github.com/comptracker/comptracker-api/internal/stats"
)

const cookieName = "token"

// Exchanger is the shape shared by both provider adapters: a raw
// provider credential in, a normalized identity out.
type Exchanger interface {
	Exchange(ctx context.Context, credential string) (*oauth.Identity, error)
}

// Pinger is what Healthz needs from the store.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	Accounts   *account.Service
	DB         Pinger
	JWTSecret  string
	SessionTTL time.Duration
	Secure     bool

	Google Exchanger
	GitHub Exchanger
	Stats  *stats.Client

	Redis           *repo.Redis
	RateLimitPerMin int
	Events          queue.Publisher
	StatsCacheTTL   time.Duration
}

func NewHandler(accounts *account.Service, db Pinger, jwtSecret string, ttlDays int, secure bool, rds *repo.Redis, rlPerMin int, pub queue.Publisher) *Handler {
	return &Handler{
		Accounts:        accounts,
		DB:              db,
		JWTSecret:       jwtSecret,
		SessionTTL:      time.Duration(ttlDays) * 24 * time.Hour,
		Secure:          secure,
		Redis:           rds,
		RateLimitPerMin: rlPerMin,
		Events:          pub,
		StatsCacheTTL:   15 * time.Minute,
	}
}

func (h *Handler) setSessionCookie(c *gin.Context, token string) {
	c.SetCookie(cookieName, token, int(h.SessionTTL.Seconds()), "/", "", h.Secure, true)
}

func (h *Handler) clearSessionCookie(c *gin.Context) {
	c.SetCookie(cookieName, "", -1, "/", "", h.Secure, true)
}

// startSession mints the token, sets the cookie and writes the account
// view. Every successful auth path ends here.
func (h *Handler) startSession(c *gin.Context, u *domain.User, kind string, status int) {
	tok, err := security.MakeSession(h.JWTSecret, u.ID.Hex(), kind, h.SessionTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token error"})
		return
	}
	h.setSessionCookie(c, tok)
	c.JSON(status, gin.H{"user": u.AsView(kind)})
}

func (h *Handler) publish(c *gin.Context, key string, event any) {
	reqID := requestID(c)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := h.Events.Publish(ctx, queue.Exchange, key, event, reqID); err != nil {
			log.L().Warn("event publish failed", zap.String("key", key), zap.Error(err))
		}
	}()
}

type registerReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// Register godoc
// @Summary Register local account
// @Tags auth
// @Accept json
// @Produce json
// @Param payload body registerReq true "register"
// @Success 201 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Router /api/auth/register [post]
func (h *Handler) Register(c *gin.Context) {
	var in registerReq
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if !strings.Contains(email, "@") || len(in.Password) < 8 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email or weak password"})
		return
	}

	u, err := h.Accounts.Register(c.Request.Context(), email, in.Password, in.Name)
	if err != nil {
		if errors.Is(err, account.ErrAlreadyExists) {
			c.JSON(http.StatusBadRequest, gin.H{"error": account.ErrAlreadyExists.Error()})
			return
		}
		log.WithDD(c.Request.Context(), log.L()).Error("register failed",
			zap.String("email_hash", helper.Hash8(email)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
		return
	}

	h.publish(c, "user.registered", queue.UserRegistered{
		UserID: u.ID.Hex(), Email: u.Email, Name: u.Name, Kind: domain.KindLocal,
	})
	h.startSession(c, u, domain.KindLocal, http.StatusCreated)
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login godoc
// @Summary Login with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param payload body loginReq true "login"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Router /api/auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var in loginReq
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	u, err := h.Accounts.Login(c.Request.Context(), in.Email, in.Password)
	if err != nil {
		if errors.Is(err, account.ErrInvalidCredentials) {
			c.JSON(http.StatusBadRequest, gin.H{"error": account.ErrInvalidCredentials.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
		return
	}

	h.publish(c, "user.loggedin", queue.UserLoggedIn{
		UserID: u.ID.Hex(), Email: u.Email, Kind: domain.KindLocal,
	})
	h.startSession(c, u, domain.KindLocal, http.StatusOK)
}

type googleReq struct {
	Token string `json:"token"`
}

// GoogleAuth godoc
// @Summary Login with a Google ID or access token
// @Tags auth
// @Accept json
// @Produce json
// @Param payload body googleReq true "google credential"
// @Success 200 {object} map[string]any
// @Failure 401 {object} map[string]string
// @Router /api/auth/google [post]
func (h *Handler) GoogleAuth(c *gin.Context) {
	var in googleReq
	if err := c.ShouldBindJSON(&in); err != nil || in.Token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	h.federatedLogin(c, h.Google, in.Token, domain.KindGoogle)
}

type githubReq struct {
	Code string `json:"code"`
}

// GitHubAuth godoc
// @Summary Login with a GitHub OAuth authorization code
// @Tags auth
// @Accept json
// @Produce json
// @Param payload body githubReq true "github code"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /api/auth/github [post]
func (h *Handler) GitHubAuth(c *gin.Context) {
	var in githubReq
	if err := c.ShouldBindJSON(&in); err != nil || in.Code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	h.federatedLogin(c, h.GitHub, in.Code, domain.KindGitHub)
}

// federatedLogin is the one code path for both providers: exchange the
// inbound credential, reconcile the identity, start the session.
func (h *Handler) federatedLogin(c *gin.Context, provider Exchanger, credential, kind string) {
	id, err := provider.Exchange(c.Request.Context(), credential)
	if err != nil {
		if errors.Is(err, oauth.ErrMissingVerifiedEmail) {
			c.JSON(http.StatusBadRequest, gin.H{"error": oauth.ErrMissingVerifiedEmail.Error()})
			return
		}
		log.WithDD(c.Request.Context(), log.L()).Info("provider exchange rejected",
			zap.String("kind", kind), zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": kind + " login failed"})
		return
	}

	u, err := h.Accounts.ResolveOrCreate(c.Request.Context(), id, kind)
	if err != nil {
		log.WithDD(c.Request.Context(), log.L()).Error("reconcile failed",
			zap.String("kind", kind), zap.String("email_hash", helper.Hash8(id.Email)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
		return
	}

	h.publish(c, "user.loggedin", queue.UserLoggedIn{
		UserID: u.ID.Hex(), Email: u.Email, Kind: kind,
	})
	h.startSession(c, u, kind, http.StatusOK)
}

// Me godoc
// @Summary Current session, or null when anonymous
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/auth/me [get]
func (h *Handler) Me(c *gin.Context) {
	u, ok := currentAccount(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"user": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u.AsView(sessionKind(c))})
}

type updateHandleReq struct {
	Platform string `json:"platform"`
	Handle   string `json:"handle"`
}

// UpdateHandles godoc
// @Summary Set one platform handle
// @Tags profile
// @Accept json
// @Produce json
// @Param payload body updateHandleReq true "handle"
// @Success 200 {object} map[string]any
// @Failure 401 {object} map[string]string
// @Router /api/auth/update-handles [post]
func (h *Handler) UpdateHandles(c *gin.Context) {
	u, _ := currentAccount(c)
	var in updateHandleReq
	if err := c.ShouldBindJSON(&in); err != nil || !domain.KnownPlatform(in.Platform) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown platform"})
		return
	}
	updated, err := h.Accounts.UpdateHandle(c.Request.Context(), u.ID.Hex(), in.Platform, in.Handle)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": updated.AsView(sessionKind(c))})
}

// UpdateProfile godoc
// @Summary Merge non-empty profile fields
// @Tags profile
// @Accept json
// @Produce json
// @Param payload body account.ProfileUpdate true "fields"
// @Success 200 {object} map[string]any
// @Failure 401 {object} map[string]string
// @Router /api/auth/update-profile [post]
func (h *Handler) UpdateProfile(c *gin.Context) {
	u, _ := currentAccount(c)
	var in account.ProfileUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	updated, err := h.Accounts.UpdateProfile(c.Request.Context(), u.ID.Hex(), in)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": updated.AsView(sessionKind(c))})
}

// Logout godoc
// @Summary Clear the session cookie
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]string
// @Router /api/auth/logout [post]
func (h *Handler) Logout(c *gin.Context) {
	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// DeleteAccount godoc
// @Summary Hard-delete the current account
// @Tags profile
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /api/auth/delete [delete]
func (h *Handler) DeleteAccount(c *gin.Context) {
	u, _ := currentAccount(c)
	if err := h.Accounts.Delete(c.Request.Context(), u.ID.Hex()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
		return
	}
	h.publish(c, "user.deleted", queue.UserDeleted{UserID: u.ID.Hex(), Email: u.Email})
	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "account deleted"})
}

func (h *Handler) Healthz(c *gin.Context) {
	if err := h.DB.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
