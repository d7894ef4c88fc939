package routes

import (
	"github.com/gin-gonic/gin"

	"webreplay/backend/internal/api/handlers"
	"webreplay/backend/internal/api/middleware"
	"webreplay/backend/internal/config"
)

func SetupRoutes(cfg *config.Config) *gin.Engine {
	router := gin.Default()

	router.Use(middleware.CORSMiddleware())
	router.Use(gin.Recovery())

	v1 := router.Group("/api/v1")
	{
		// Public routes
		auth := v1.Group("/auth")
		{
			auth.POST("/login", handlers.Login)
			auth.POST("/register", handlers.Register)
		}

		v1.GET("/health", handlers.HealthCheck)

		// WebSocket endpoint (session creation already requires auth)
		v1.GET("/ws/recording", handlers.RecordingWebSocket)

		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware())
		{
			recording := protected.Group("/recording")
			{
				recording.POST("/start", handlers.StartRecording)
				recording.POST("/stop", handlers.StopRecording)
				recording.GET("/status", handlers.GetRecordingStatus)
				recording.POST("/save", handlers.SaveRecording)
			}

			flows := protected.Group("/flows")
			{
				flows.GET("", handlers.GetFlows)
				flows.POST("", handlers.CreateFlow)
				flows.POST("/import", handlers.ImportFlows)
				flows.POST("/export", handlers.ExportFlows)
				flows.GET("/:id", handlers.GetFlow)
				flows.PUT("/:id", handlers.UpdateFlow)
				flows.DELETE("/:id", handlers.DeleteFlow)
				flows.GET("/:id/export", handlers.ExportFlow)
				flows.POST("/:id/play", handlers.StartPlayback)
			}

			playback := protected.Group("/playback")
			{
				playback.POST("/pause", handlers.PausePlayback)
				playback.POST("/resume", handlers.ResumePlayback)
				playback.POST("/stop", handlers.StopPlayback)
				playback.POST("/advance", handlers.AdvancePlayback)
				playback.GET("/status", handlers.GetPlaybackStatus)
			}

			executions := protected.Group("/executions")
			{
				executions.GET("", handlers.GetExecutions)
				executions.GET("/statistics", handlers.GetExecutionStatistics)
				executions.GET("/:id", handlers.GetExecution)
				executions.DELETE("/:id", handlers.DeleteExecution)
			}
		}
	}

	return router
}
