package server

import (
	"net/http"
	"sync"

	"github.com/denisbrodbeck/machineid"
	"github.com/gin-gonic/gin"

	"github.com/wisnuc/appifi/internal/server/accesslog"
	"github.com/wisnuc/appifi/internal/server/handlers/api"
	"github.com/wisnuc/appifi/internal/server/handlers/drive"
	"github.com/wisnuc/appifi/internal/server/handlers/nfs"
	"github.com/wisnuc/appifi/internal/server/middlewares"
	"github.com/wisnuc/appifi/internal/version"
)

func SetupRoutes(config *Config, svc *Services) (http.Handler, error) {
	r := gin.New()

	driveH := drive.New(svc.Drives)
	nfsH := nfs.New(svc.NFS)

	r.Use(middlewares.Logger())
	r.Use(gin.Recovery())
	r.Use(middlewares.Secure(config.HTTP.TLS()))
	r.Use(middlewares.CORS())

	r.GET("/healthz", HealthHandler)

	v1 := r.Group("/api/v1")
	if config.HTTP.RateLimit != "" {
		limit, err := middlewares.RateLimiter(config.HTTP.RateLimit)
		if err != nil {
			return nil, err
		}
		v1.Use(limit)
	}
	v1.Use(middlewares.JWTAuth(svc.Auth))
	v1.Use(accesslog.Middleware(svc.AccessLog))
	{
		// drive snapshot
		v1.GET("/drives", middlewares.GZIP(), driveH.List)
		v1.PUT("/drives", driveH.Replace)

		// files
		v1.GET("/nfs/:drive", nfsH.Get)
		v1.GET("/nfs/:drive/find", middlewares.GZIP(), nfsH.Find)
		v1.POST("/nfs/:drive", nfsH.Upload)
		v1.POST("/nfs/:drive/mkdir", nfsH.Mkdir)
		v1.PATCH("/nfs/:drive", nfsH.Move)
		v1.DELETE("/nfs/:drive", nfsH.Delete)
	}

	r.NoRoute(func(c *gin.Context) {
		c.PureJSON(http.StatusNotFound, api.APIError{
			Code:    api.CodeNotFound,
			Message: "not found",
		})
	})

	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		c.PureJSON(http.StatusMethodNotAllowed, api.APIError{
			Code:    api.CodeInvalidRequest,
			Message: "method not allowed",
		})
	})

	return r.Handler(), nil
}

// instanceID is an app-scoped hash of the host's machine id. It is empty on
// hosts without one, such as minimal containers.
var instanceID = sync.OnceValue(func() string {
	id, err := machineid.ProtectedID(version.AppName)
	if err != nil {
		return ""
	}
	return id
})

func HealthHandler(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, gin.H{
		"status":   "ok",
		"version":  version.Get(),
		"instance": instanceID(),
	})
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
