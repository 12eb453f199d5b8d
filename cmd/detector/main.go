// Mock fraud detector - local stand-in for the remote classification service
package main

import (
	"os"

	"github.com/gin-gonic/gin"
	"github.com/securehome/intake/internal/config"
	"github.com/securehome/intake/internal/detector"
	"github.com/securehome/intake/internal/logging"
)

func main() {
	logger := logging.New("info", "text")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	svc := detector.NewService(detector.Shape(cfg.DetectorShape), logger)
	svc.RegisterRoutes(router)

	port := os.Getenv("DETECTOR_PORT")
	if port == "" {
		port = "8000"
	}

	logger.Info("starting mock detector", "port", port, "shape", cfg.DetectorShape)
	if err := router.Run(":" + port); err != nil {
		logger.Error("detector error", "error", err)
		os.Exit(1)
	}
}
