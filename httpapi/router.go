package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// NewRouter assembles the gin engine with the full middleware chain and
// route table.
func NewRouter(h *Handlers, log *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(RequestID())
	router.Use(Recovery(log))
	router.Use(RequestLogger(log))
	router.Use(RateLimit(100, time.Minute))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	api := router.Group("/api")
	{
		api.POST("/auth/register", h.Register)
		api.POST("/auth/login", h.Login)
	}

	protected := api.Group("/")
	protected.Use(Authenticated(h.Auth))
	{
		protected.GET("/auth/me", h.CurrentUser)

		protected.POST("/bounties", h.CreateBounty)
		protected.GET("/bounties/:id", h.GetBounty)
		protected.POST("/bounties/:id/submissions", h.SubmitSolution)
		protected.GET("/bounties/:id/submissions", h.ListSubmissions)

		protected.GET("/submissions/:id", h.GetSubmission)
		protected.POST("/submissions/:id/stakes", h.PlaceStake)
		protected.GET("/submissions/:id/consensus", h.GetConsensus)

		protected.GET("/cases/:id", h.GetCase)
		protected.POST("/cases/:id/decision", h.DecideCase)

		protected.GET("/resolution/actions", h.ListActions)
		protected.POST("/resolution/tick", h.TriggerTick)
	}

	return router
}
