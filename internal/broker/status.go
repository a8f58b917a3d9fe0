package broker

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/danmuck/dockctl/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const statusVersion = "0.1.0"

// StatusRouter builds the HTTP status endpoint: /health, /ready, /sessions
// and /metrics.
func (s *Service) StatusRouter() *gin.Engine {
	observability.RegisterMetrics()
	started := time.Now()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware())
	if len(s.cfg.StatusCORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: s.cfg.StatusCORSOrigins,
			AllowMethods: []string{"GET"},
			AllowHeaders: []string{"Origin", "Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(started).String(),
			"version": statusVersion,
		})
	})

	r.GET("/ready", func(c *gin.Context) {
		status := http.StatusOK
		if !s.Ready() {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready":    s.Ready(),
			"sessions": s.ActiveSessions(),
		})
	})

	r.GET("/sessions", func(c *gin.Context) {
		sessions := s.Sessions()
		c.JSON(http.StatusOK, gin.H{
			"count":    len(sessions),
			"sessions": sessions,
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

func (s *Service) startStatus(addr string) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("broker: status listen %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:           s.StatusRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("broker.status serve failed")
		}
	}()
	log.Info().Str("addr", ln.Addr().String()).Msg("broker.status listening")
	return srv, nil
}
