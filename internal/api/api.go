package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/profilehub/internal/account"
	"github.com/jon4hz/profilehub/internal/api/handler"
	"github.com/jon4hz/profilehub/internal/api/models"
	"github.com/jon4hz/profilehub/internal/config"
	"github.com/jon4hz/profilehub/internal/storage"
	"golang.org/x/sync/errgroup"
)

type Server struct {
	cfg       *config.Config
	ginEngine *gin.Engine
	service   *account.Service
	files     storage.Store
}

func New(cfg *config.Config, service *account.Service, files storage.Store, debug bool) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if service == nil || files == nil {
		return nil, fmt.Errorf("account service and file storage are required")
	}

	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	ginEngine := gin.New()
	ginEngine.HandleMethodNotAllowed = true

	s := &Server{
		cfg:       cfg,
		ginEngine: ginEngine,
		service:   service,
		files:     files,
	}
	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

func (s *Server) setupMiddleware() {
	handlers := []gin.HandlerFunc{
		requestLogger(),
		gin.CustomRecovery(func(c *gin.Context, recovered any) {
			log.Error("panic while handling request", "path", c.Request.URL.Path, "panic", recovered)
			c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{Detail: account.MsgInternal})
		}),
	}
	if s.cfg.CORS.AllowsAll() {
		handlers = append(handlers, reflectPreflight())
	}
	handlers = append(handlers, cors.New(corsConfig(s.cfg.CORS)))
	s.ginEngine.Use(handlers...)

	if s.cfg.Gzip {
		s.ginEngine.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{storage.PublicPrefix})))
	}
}

func (s *Server) setupRoutes() {
	h := handler.New(s.service, s.files)

	s.ginEngine.NoRoute(handler.NotFound)
	s.ginEngine.NoMethod(handler.MethodNotAllowed)

	s.ginEngine.POST("/signup", h.Signup)
	s.ginEngine.POST("/login", h.Login)
	s.ginEngine.GET("/profile/:email", h.Profile)
	s.ginEngine.POST("/upload-profile-pic/:email", h.UploadProfilePic)
	s.ginEngine.GET("/healthz", h.Health)

	// local files are served straight from disk, everything else goes through the store
	if local, ok := s.files.(*storage.LocalStore); ok {
		s.ginEngine.Static(storage.PublicPrefix, local.Dir())
	} else {
		s.ginEngine.GET(storage.PublicPrefix+":name", h.ServeUpload)
		s.ginEngine.HEAD(storage.PublicPrefix+":name", h.ServeUpload)
	}
}

// Handler returns the http.Handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.ginEngine
}

// Run serves the API until ctx is cancelled, then shuts the server down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.ginEngine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting API server", "listen", s.cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Info("shutting down API server")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// corsConfig allows every origin unless a list of origins is configured.
// Credentials are allowed, so the request origin is echoed instead of "*".
// With every origin allowed, methods and headers are left to reflectPreflight.
func corsConfig(cfg *config.CORSConfig) cors.Config {
	c := cors.Config{
		ExposeHeaders:    []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.AllowsAll() {
		c.AllowOriginFunc = func(string) bool { return true }
		return c
	}
	c.AllowOrigins = cfg.AllowedOrigins
	c.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}
	c.AllowHeaders = []string{"Origin", "Content-Type", "Content-Length", "Accept", "Authorization", requestIDHeader}
	return c
}
