package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"tqa/communication"
	"tqa/config"
	"tqa/engine"
)

// Server exposes an engine over HTTP:
//
//	POST /answer     engine.Request -> engine.Result
//	GET  /runs/:id   stored engine.Result
//	GET  /healthz
//	GET  /metrics    Prometheus
type Server struct {
	engine engine.Engine
	cfg    config.ServerConfig
	router *gin.Engine
}

func New(eng engine.Engine, cfg config.ServerConfig) *Server {
	if eng == nil {
		panic("Server requires an engine")
	}
	gin.SetMode(gin.ReleaseMode)
	s := &Server{engine: eng, cfg: cfg, router: gin.New()}
	s.router.Use(gin.Recovery(), requestLogger())

	s.router.POST("/answer", s.handleAnswer)
	s.router.GET("/runs/:id", s.handleRun)
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	errs := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.cfg.Addr).Msg("server listening")
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errs; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleAnswer(c *gin.Context) {
	var req engine.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, communication.ErrorResponse{Error: err.Error()})
		return
	}

	ctx := c.Request.Context()
	if s.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancel()
	}
	res, err := s.engine.Answer(ctx, req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleRun(c *gin.Context) {
	res, err := s.engine.Run(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) fail(c *gin.Context, err error) {
	status := communication.StatusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, communication.ErrorResponse{Error: err.Error()})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("http request")
	}
}
