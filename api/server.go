package api

import (
	"context"
	"net/http"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/epimap/epimap-api/logmodule"
	"github.com/epimap/epimap-api/raster"
	"github.com/epimap/epimap-api/store"
	"github.com/epimap/epimap-api/workflow"
)

var log *logrus.Entry

func init() {
	log = logrus.WithField("prefix", "gin")
}

// Server to run a http server instance
type Server struct {
	// Server instance
	server *http.Server

	// Stores
	store store.EpimapStore

	// Analysis workflow state machine
	machine *workflow.Machine

	// Shared composite raster cache
	rasterCache *raster.Cache
}

// NewServer new instance of server
func NewServer(epimapStore store.EpimapStore, rasterCache *raster.Cache) *Server {
	return &Server{
		store:       epimapStore,
		machine:     workflow.NewMachine(epimapStore, epimapStore),
		rasterCache: rasterCache,
	}
}

// Run to run the server
func (s *Server) Run(addr string) error {
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.setupRouter(),
	}

	return s.server.ListenAndServe()
}

func (s *Server) setupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(sentrygin.New(sentrygin.Options{
		Repanic:         true,
		WaitForDelivery: false,
		Timeout:         10 * time.Second,
	}))
	r.Use(requestMetrics())

	apiRoute := r.Group("/api")
	apiRoute.Use(logmodule.Ginrus("API"))
	apiRoute.Use(cors.New(cors.Config{
		AllowMethods:     []string{"GET", "POST", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		AllowAllOrigins:  true,
		MaxAge:           12 * time.Hour,
	}))

	apiRoute.GET("/information", s.information)

	sessionRoute := apiRoute.Group("/sessions")
	{
		sessionRoute.POST("/:session_id/events", s.handleEvent)
		sessionRoute.POST("/:session_id/surveillance", s.uploadSurveillance)
		sessionRoute.POST("/:session_id/covariates", s.extractCovariates)
		sessionRoute.GET("/:session_id/risk", s.riskTable)
		sessionRoute.DELETE("/:session_id", s.deleteSession)
	}

	rasterRoute := apiRoute.Group("/rasters")
	{
		rasterRoute.POST("/compose", s.composeRasters)
	}

	boundaryRoute := apiRoute.Group("/boundaries")
	{
		boundaryRoute.POST("", s.importBoundaries)
	}

	unitRoute := apiRoute.Group("/units")
	{
		unitRoute.GET("/locate", s.resolveUnit)
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", s.healthz)

	return r
}

// Shutdown to shutdown the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// shouldInterupt sends error message and determine if it should interupt the current flow
func shouldInterupt(err error, c *gin.Context) bool {
	if err == nil {
		return false
	}

	log.Error(err)
	abortWithEncoding(c, http.StatusInternalServerError, errorInternalServer)
	return true
}

func (s *Server) healthz(c *gin.Context) {
	// Ping db
	err := s.store.Ping()
	if shouldInterupt(err, c) {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "OK",
		"version": viper.GetString("server.version"),
	})
}

func (s *Server) information(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"information": map[string]interface{}{
			"server": map[string]interface{}{
				"version": viper.GetString("server.version"),
			},
			"system_version": "Epimap 0.1",
			"docs":           viper.GetStringMap("docs"),
		},
	})
}

func responseWithEncoding(c *gin.Context, code int, obj ErrorResponse) {
	acceptEncoding := c.GetHeader("Accept-Encoding")
	switch acceptEncoding {
	default:
		c.JSON(code, obj)
	}
}

func abortWithEncoding(c *gin.Context, code int, obj ErrorResponse, errors ...error) {
	for _, err := range errors {
		c.Error(err)
	}
	responseWithEncoding(c, code, obj)
	c.Abort()
}
