// Package adminhttp is the server's HTTP side channel: a small gin
// router exposing health/info endpoints and Prometheus metrics,
// bootstrapped the same way the teacher's HTTP API is (gin.New with
// Recovery + CORS + a zap request-logging middleware, wrapped in a
// plain http.Server with explicit timeouts).
package adminhttp

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/edirooss/respd/internal/command"
)

// RecentCommandsReader is implemented by internal/server.Server; kept as
// a narrow interface here so this package does not import internal/server
// and depends only on the two methods it reads.
type RecentCommandsReader interface {
	RecentCommands(n int) []string
	ActiveConnections() int64
}

// Server wraps an http.Server serving the admin surface.
type Server struct {
	http *http.Server
	log  *zap.Logger
}

// New builds the admin HTTP server. cmd supplies INFO-style data
// (uptime, replication role); conns supplies the live connection/command
// view internal/server maintains.
func New(log *zap.Logger, cmd *command.Server, conns RecentCommandsReader, addr string) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("adminhttp")

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	_ = r.SetTrustedProxies([]string{"127.0.0.1"})

	r.Use(gin.Recovery())
	r.Use(secure.New(secure.Config{
		FrameDeny:          true,
		ContentTypeNosniff: true,
	}))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET"},
		AllowHeaders:     []string{"Content-Type"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(zapLogger(log))

	r.GET("/debug/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	r.GET("/debug/info", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"uptime_seconds":     int(time.Since(cmd.StartTime).Seconds()),
			"connections":        conns.ActiveConnections(),
			"replicas":           replicaCount(cmd),
			"replication_offset": replOffset(cmd),
		})
	})

	r.GET("/debug/commands", func(c *gin.Context) {
		n := 100
		c.JSON(http.StatusOK, gin.H{"recent": conns.RecentCommands(n)})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:    addr,
		Handler: r,

		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,

		MaxHeaderBytes: 1 << 15,

		ErrorLog: zap.NewStdLog(log.WithOptions(zap.AddCallerSkip(1))),
	}
	return &Server{http: srv, log: log}
}

// Serve blocks until ctx is cancelled, then shuts the HTTP server down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.http.Shutdown(shutdownCtx)
	}()

	s.log.Info("listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// zapLogger mirrors the teacher's ZapLogger gin middleware: one
// structured log line per request, leveled by response status.
func zapLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
		}
		switch {
		case status >= 500:
			log.Error("request", fields...)
		case status >= 400:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}

func replicaCount(cmd *command.Server) int {
	if cmd.Repl == nil {
		return 0
	}
	return cmd.Repl.ReplicaCount()
}

func replOffset(cmd *command.Server) int64 {
	if cmd.Repl == nil {
		return 0
	}
	return cmd.Repl.Offset()
}
