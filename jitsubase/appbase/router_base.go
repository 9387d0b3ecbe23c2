package appbase

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jitsucom/backfill-runbooks/jitsubase/utils"
	"github.com/penglongli/gin-metrics/ginmetrics"
)

type Router struct {
	Service
	engine      *gin.Engine
	authToken   string
	noAuthPaths []string
}

// NewRouterBase creates gin engine with recovery, request metrics and optional bearer token auth.
// Empty authToken allows all requests.
func NewRouterBase(authToken string, noAuthPaths []string) *Router {
	base := NewServiceBase("router")
	router := &Router{
		Service:     base,
		authToken:   authToken,
		noAuthPaths: noAuthPaths,
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	m := ginmetrics.GetMonitor()
	m.SetSlowTime(1)
	m.SetDuration([]float64{0.01, 0.05, 0.1, 0.3, 1.0})
	m.UseWithoutExposingEndpoint(engine)
	engine.Use(gin.Recovery())
	engine.Use(router.authMiddleware)
	router.engine = engine
	return router
}

// Engine returns gin router
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) authMiddleware(c *gin.Context) {
	if r.authToken == "" {
		return
	}
	if utils.ArrayContains(r.noAuthPaths, c.FullPath()) {
		//no auth for this path
		return
	}
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header with Bearer token is required"})
		return
	}
	if token != r.authToken {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
	}
}

// ResponseError logs err and writes it as json error response
func (r *Router) ResponseError(c *gin.Context, code int, errorType string, err error) {
	r.Errorf("%s: %v", errorType, err)
	c.JSON(code, gin.H{"error": errorType + ": " + err.Error()})
}
