package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"webreplay/backend/internal/api/routes"
	"webreplay/backend/internal/config"
	"webreplay/backend/internal/services"
	"webreplay/backend/pkg/auth"
	"webreplay/backend/pkg/database"
	"webreplay/backend/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	if err := logger.Init(cfg.Log); err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	auth.InitJWT(cfg.JWT.Secret)

	if err := database.InitDatabase(cfg); err != nil {
		log.Fatal("Failed to initialize database:", err)
	}

	services.InitRecording(cfg)
	services.InitPlayback(cfg)

	if err := services.InitScheduler(); err != nil {
		log.Fatal("Failed to initialize scheduler:", err)
	}

	gin.SetMode(cfg.Server.Mode)
	router := routes.SetupRoutes(cfg)

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		logger.L().Info("shutting down server")

		if services.GlobalScheduler != nil {
			services.GlobalScheduler.Stop()
		}
		if services.GlobalPlayback != nil {
			services.GlobalPlayback.Stop()
		}
		if services.GlobalRecording != nil {
			services.GlobalRecording.Stop()
		}

		logger.Sync()
		os.Exit(0)
	}()

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.L().Info("server starting on " + addr)
	if err := router.Run(addr); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
