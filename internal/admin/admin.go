// Package admin exposes the server's HTTP observability surface —
// /healthz, /metrics, /info — as a thin Gin router, styled after
// cmd/zmux-server/main.go's router construction (gin.Recovery first,
// then CORS, then a Zap request logger, then routes) but with no admin
// CRUD surface of its own: this server's only mutation path is RESP.
package admin

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nullbyte-labs/redisgo/internal/keyspace"
	"github.com/nullbyte-labs/redisgo/internal/metrics"
)

// ZapLogger logs each request's method/route/status/latency through log,
// copied near-verbatim from the teacher's own ZapLogger middleware and
// renamed only where package-local types changed.
func ZapLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.String("client_ip", c.ClientIP()),
			zap.Duration("latency", latency),
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

// Replication reports the subset of a replication controller's state the
// /info endpoint surfaces. Kept as a narrow interface (rather than
// importing internal/replication directly) so admin stays usable with no
// replication configured.
type Replication interface {
	NumReplicas() int
	CurrentOffset() int64
}

// NewRouter builds the admin HTTP surface. replication may be nil when
// the server has no replicas and isn't itself a replica.
func NewRouter(log *zap.Logger, ks *keyspace.Keyspace, metricsReg *metrics.Registry, replication Replication, devCORS bool) *gin.Engine {
	if log == nil {
		log = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	_ = r.SetTrustedProxies([]string{"127.0.0.1"})

	r.Use(gin.Recovery())

	if devCORS {
		r.Use(cors.New(cors.Config{
			AllowOrigins: []string{"http://localhost:5173"},
			AllowMethods: []string{"GET"},
			AllowHeaders: []string{"Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}

	r.Use(secure.New(secure.Config{
		SSLRedirect:           false,
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ContentSecurityPolicy: "default-src 'none'",
	}))

	r.Use(ZapLogger(log.Named("admin")))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/metrics", func(c *gin.Context) {
		snap := metricsReg.Snapshot()
		c.JSON(http.StatusOK, snap)
	})

	r.GET("/info", func(c *gin.Context) {
		info := gin.H{
			"dbsize":      ks.DBSize(),
			"connections": metricsReg.Snapshot().Connections,
			"blocked":     metricsReg.Snapshot().Blocked,
		}
		if replication != nil {
			info["connected_replicas"] = replication.NumReplicas()
			info["master_repl_offset"] = replication.CurrentOffset()
		}
		c.JSON(http.StatusOK, info)
	})

	return r
}
