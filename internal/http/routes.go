package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(Metrics())
	r.Use(h.Session())

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	auth := r.Group("/api/auth")
	{
		limited := RateLimit(h.Redis, h.RateLimitPerMin)
		auth.POST("/register", limited, h.Register)
		auth.POST("/login", limited, h.Login)
		auth.POST("/google", limited, h.GoogleAuth)
		auth.POST("/github", limited, h.GitHubAuth)

		auth.GET("/me", h.Me)
		auth.POST("/logout", h.Logout)

		auth.POST("/update-handles", RequireAccount(), h.UpdateHandles)
		auth.POST("/update-profile", RequireAccount(), h.UpdateProfile)
		auth.DELETE("/delete", RequireAccount(), h.DeleteAccount)
	}

	st := r.Group("/api/stats")
	{
		st.GET("/leetcode/:handle", h.LeetCodeStats)
		st.GET("/codeforces/:handle", h.CodeforcesStats)
		st.GET("/codechef/:handle", h.CodeChefStats)
	}

	return r
}
