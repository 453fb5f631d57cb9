package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	slogGin "github.com/samber/slog-gin"

	"github.com/mirrorlab/codesync/internal/sdk"
	syncHandlers "github.com/mirrorlab/codesync/internal/server/handlers/sync"
	"github.com/mirrorlab/codesync/internal/version"
)

var startedAt = time.Now()

func SetupRoutes(svc *Services) http.Handler {
	r := gin.New()

	syncH := syncHandlers.New(svc.Index)

	httpLogger := slog.Default().WithGroup("http")
	r.Use(slogGin.NewWithConfig(httpLogger, slogGin.Config{
		DefaultLevel:     slog.LevelInfo,
		ClientErrorLevel: slog.LevelWarn,
		ServerErrorLevel: slog.LevelError,
		WithRequestID:    true,
	}))
	r.Use(gin.Recovery())
	r.Use(gzip.Gzip(gzip.BestSpeed))
	r.Use(cors.Default())

	r.GET("/", IndexHandler)
	r.GET("/healthz", healthHandler(svc))

	v1 := r.Group("/api/v1")
	{
		v1.POST("/sync/register", syncH.Register)
		v1.POST("/sync/probe", syncH.Probe)
		v1.POST("/sync/negotiate", syncH.Negotiate)
		v1.POST("/sync/push", syncH.PushChanges)
		v1.POST("/sync/removals", syncH.PushRemovals)
		v1.GET("/sync/projects", syncH.ListProjects)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "not found",
		})
	})

	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{
			"error": "method not allowed",
		})
	})

	return r.Handler()
}

func IndexHandler(ctx *gin.Context) {
	ctx.String(http.StatusOK, version.Detailed())
}

func healthHandler(svc *Services) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		projects, err := svc.Index.CountProjects()
		if err != nil {
			ctx.PureJSON(http.StatusInternalServerError, sdk.HealthResponse{
				Status: "degraded",
			})
			return
		}
		ctx.PureJSON(http.StatusOK, sdk.HealthResponse{
			Status:   "ok",
			Version:  version.Version,
			Projects: projects,
			Uptime:   time.Since(startedAt).Round(time.Second).String(),
		})
	}
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
