package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sujalbistaa/whispr/internal/inbox"
	"github.com/sujalbistaa/whispr/internal/metrics"
	"github.com/sujalbistaa/whispr/internal/store"
	"github.com/sujalbistaa/whispr/internal/suggest"
	"github.com/sujalbistaa/whispr/internal/ws"
)

// Deps are the collaborators the HTTP layer is wired to.
type Deps struct {
	Store      *store.Store
	Inbox      *inbox.Router
	Suggest    suggest.Collaborator
	Streamer   *ws.Streamer
	Metrics    *metrics.Collector
	Logger     *zap.Logger
	CORSOrigin string
}

// SetupRoutes configures all application routes and middleware. The
// returned function stops background jobs.
func SetupRoutes(router *gin.Engine, deps Deps) (stop func()) {

	// --- Dependencies ---
	env := &Env{Store: deps.Store, Inbox: deps.Inbox, Suggest: deps.Suggest, Log: deps.Logger}

	// --- Middleware ---
	router.Use(RequestLogger(deps.Logger, deps.Metrics))
	router.Use(gin.Recovery())
	router.Use(SecurityHeadersMiddleware())

	corsOrigin := deps.CORSOrigin
	if corsOrigin == "" {
		corsOrigin = "*" // Default to allow all for local dev
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{corsOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", viewerHeader},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: corsOrigin != "*",
	}))

	// --- Rate Limiter Setup ---
	limiter := NewIPRateLimiter(rate.Limit(rateLimitRPS), rateLimitBurst)
	janitor := limiter.StartJanitor(deps.Logger)
	limited := RateLimitMiddleware(limiter)

	// --- API Routes ---
	api := router.Group("/api")
	{
		api.GET("/confessions", env.ListConfessions)
		api.POST("/confessions", limited, env.CreateConfession)
		api.GET("/confessions/:id", env.GetConfession)
		api.POST("/confessions/:id/comments", limited, env.AddComment)
		api.POST("/confessions/:id/like", env.ToggleLike)

		api.GET("/sources/top", env.TopSources)
		api.GET("/stats", env.Stats)
		api.GET("/recommendations", env.Recommendations)

		api.GET("/themes", env.ListThemes)
		api.GET("/theme", env.GetTheme)
		api.PUT("/theme", env.SetTheme)

		api.POST("/suggestions", env.Suggestions)
		api.POST("/refine", env.Refine)

		api.GET("/inbox/:id", env.GetInbox)
		api.POST("/inbox/:id/messages", limited, env.SendAnonymousMessage)
	}

	// --- WebSocket Route ---
	if deps.Streamer != nil {
		router.GET("/ws/whispers", func(c *gin.Context) {
			deps.Streamer.ServeWhispers(c.Writer, c.Request)
		})
	}

	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	return func() { <-janitor.Stop().Done() }
}
