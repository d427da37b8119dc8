package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/popgate/service"
)

// RouterConfig tunes the HTTP surface.
type RouterConfig struct {
	// ChallengesPerIP caps challenge issuance per client IP per window.
	// Zero disables the limiter.
	ChallengesPerIP int
	ChallengeWindow time.Duration
}

// SetupRouter sets up the Gin router.
func SetupRouter(gateway *service.Gateway, cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	handlers := NewGatewayHandlers(gateway)

	access := router.Group("/access")
	{
		request := access.Group("")
		if cfg.ChallengesPerIP > 0 {
			window := cfg.ChallengeWindow
			if window <= 0 {
				window = time.Minute
			}
			request.Use(ChallengeRateLimit(cfg.ChallengesPerIP, window))
		}
		request.POST("/request", handlers.RequestAccess)

		access.POST("/verify", handlers.VerifyPersonhood)
	}

	api := router.Group("/api")
	api.Use(AdmissionMiddleware(gateway))
	{
		api.GET("/me", handlers.Me)
		api.GET("/authorize", handlers.Authorize)
	}

	admin := router.Group("/admin")
	{
		admin.POST("/blacklist", handlers.Blacklist)
		admin.DELETE("/blacklist/:identity_id", handlers.Unblacklist)
		admin.GET("/stats", handlers.Stats)
	}

	return router
}
