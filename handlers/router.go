package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"noshow-prediction-api/config"
	"noshow-prediction-api/middleware"
	"noshow-prediction-api/pipeline"
	"noshow-prediction-api/services"
)

type RouterDeps struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Pipeline *pipeline.Pipeline
	Cache    *services.CacheService
	Runs     *services.RunFeed
	Limiter  *middleware.RateLimiter
}

func NewRouter(d RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(
		middleware.RequestLogger(d.Logger),
		middleware.Recovery(),
		middleware.SetupCORS(d.Config.CORS),
	)

	router.GET("/health", func(c *gin.Context) {
		_, err := d.Pipeline.ModelVersion(c.Request.Context())
		status := "UP"
		if err != nil {
			status = "DEGRADED"
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  status,
			"message": "No-show prediction API is running",
			"records": d.Pipeline.Store().Len(),
			"model":   err == nil,
			"redis":   d.Cache.Available(),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/ws/runs", RunsWebSocket(d.Runs))

	api := router.Group("/")
	api.Use(middleware.RequestTimeout(d.Config.Server.RequestTimeout))
	if d.Limiter != nil {
		api.Use(d.Limiter.Middleware())
	}

	clinics := NewClinicsHandler(d.Pipeline.Store())
	api.GET("/clinics", clinics.GetClinics)

	ds := NewDatasetHandler(d.Pipeline.Store())
	api.GET("/dataset/range", ds.GetRange)

	pred := NewPredictionHandler(d.Pipeline, d.Cache, d.Runs)
	api.POST("/process/", pred.Process)
	api.POST("/process/report", pred.Report)

	return router
}
