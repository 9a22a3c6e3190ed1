package router

import (
	"net/http"
	"time"

	"github.com/examroom/examroom-backend/internal/config"
	"github.com/examroom/examroom-backend/internal/handler"
	"github.com/examroom/examroom-backend/internal/middleware"
	"github.com/examroom/examroom-backend/internal/response"
	"github.com/examroom/examroom-backend/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth      *handler.AuthHandler
	Exam      *handler.ExamHandler
	Session   *handler.SessionHandler
	Generator *handler.GeneratorHandler
	WS        *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── 0. Public Group (No Auth) ─────────────────────────────────────
	// Join-screen previews change rarely; let clients cache them briefly.
	publicAPI := router.Group("/api/v1/public")
	publicAPI.Use(middleware.CacheControl(30))
	{
		publicAPI.GET("/exams/:exam", handlers.Exam.PreviewExam)
	}

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/register", handlers.Auth.Register)
		auth.POST("/login", handlers.Auth.Login)
		auth.GET("/me", middleware.RequireJWT(authService), handlers.Auth.Me)
	}

	// ─── 2. Exam Catalog Group (JWT) ───────────────────────────────────
	examAPI := router.Group("/api/v1/exams")
	examAPI.Use(middleware.RequireJWT(authService))
	{
		examAPI.GET("", handlers.Exam.ListExams)
		examAPI.POST("", handlers.Exam.CreateExam)

		// :exam accepts either an exam UUID or a join code.
		examAPI.GET("/:exam", handlers.Exam.GetExam)
		examAPI.PATCH("/:exam", handlers.Exam.UpdateExam)
		examAPI.DELETE("/:exam", handlers.Exam.DeleteExam)
		examAPI.GET("/:exam/results", handlers.Exam.GetExamResults)

		examAPI.POST("/:exam/sessions", handlers.Session.StartSession)
		examAPI.GET("/:exam/sessions", handlers.Session.History)
	}

	// AI generation is expensive upstream; throttle it harder.
	generateLimiter := middleware.NewRateLimiter(5, time.Minute)
	router.POST("/api/v1/generate-exam",
		middleware.RequireJWT(authService), generateLimiter.Middleware(),
		handlers.Generator.GenerateExam)

	// ─── 3. Session Group (JWT) ────────────────────────────────────────
	sessionAPI := router.Group("/api/v1/sessions")
	sessionAPI.Use(middleware.RequireJWT(authService))
	{
		sessionAPI.GET("/:session_id", handlers.Session.GetSessionState)
		sessionAPI.PATCH("/:session_id", handlers.Session.AutoSave)
		sessionAPI.GET("/:session_id/heartbeat", handlers.Session.Heartbeat)
		sessionAPI.POST("/:session_id/submit", handlers.Session.Submit)
		sessionAPI.GET("/:session_id/submission", handlers.Session.GetResult)
	}

	router.GET("/api/v1/submissions/:submission_id",
		middleware.RequireJWT(authService), handlers.Session.GetSubmission)

	// ─── 4. WebSocket Group (WS Auth via ?token=) ──────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireWSAuth(authService))
	{
		ws.GET("/sessions/:session_id/stream", handlers.WS.SessionStream)
	}

	return router
}
