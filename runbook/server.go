package runbook

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jitsucom/backfill-runbooks/jitsubase/appbase"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type StatusRouter struct {
	*appbase.Router
	store Store
}

// NewStatusRouter exposes progress document of a running runbook: /status, /metrics and /health
func NewStatusRouter(store Store, authToken string) *StatusRouter {
	base := appbase.NewRouterBase(authToken, []string{"/health", "/metrics"})
	router := &StatusRouter{
		Router: base,
		store:  store,
	}
	engine := router.Engine()
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "pass"})
	})
	engine.GET("/status", router.StatusHandler)
	engine.GET("/status/:unit", router.UnitHandler)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return router
}

func (r *StatusRouter) StatusHandler(c *gin.Context) {
	t, err := r.store.Load(c.Request.Context())
	if err != nil {
		r.loadError(c, err)
		return
	}
	counts := map[string]int{}
	for status, n := range t.CountByStatus() {
		counts[string(status)] = n
	}
	c.JSON(http.StatusOK, gin.H{
		"run_id":     t.RunID,
		"runbook":    t.Runbook,
		"cluster":    t.Cluster,
		"date_range": t.DateRange,
		"counts":     counts,
		"failed":     t.IDsWithStatus(StatusFailed),
		"active":     t.IDsWithStatus(StatusDeleting, StatusBackfilling, StatusRunning),
	})
}

func (r *StatusRouter) UnitHandler(c *gin.Context) {
	t, err := r.store.Load(c.Request.Context())
	if err != nil {
		r.loadError(c, err)
		return
	}
	u, ok := t.Units[c.Param("unit")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": ErrUnknownUnit.Error()})
		return
	}
	c.JSON(http.StatusOK, u)
}

func (r *StatusRouter) loadError(c *gin.Context, err error) {
	if IsNotFound(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	r.ResponseError(c, http.StatusInternalServerError, "failed to load tracking", err)
}

// NewStatusServer returns nil if port is 0
func NewStatusServer(store Store, port int, authToken string) *http.Server {
	if port == 0 {
		return nil
	}
	return &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", port),
		Handler:           NewStatusRouter(store, authToken).Engine(),
		ReadTimeout:       time.Second * 60,
		ReadHeaderTimeout: time.Second * 60,
		IdleTimeout:       time.Second * 65,
	}
}
