package controller

import (
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/makehub/llm-gateway/common"
	dbmodel "github.com/makehub/llm-gateway/model"
	"github.com/makehub/llm-gateway/registry"
)

// requestCount tracks completions handled since start, for /stats.
var requestCount atomic.Int64

// CountRequest is installed as middleware on the relay routes.
func CountRequest(c *gin.Context) {
	requestCount.Add(1)
	c.Next()
}

// Health is the liveness probe: process up, registry populated.
func Health(c *gin.Context) {
	status := "ok"
	code := http.StatusOK
	if len(registry.Default.ListActive()) == 0 {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":  status,
		"version": common.Version,
	})
}

// RelayHealth is the deep probe behind auth: storage reachable and the model
// snapshot fresh enough to route.
func RelayHealth(c *gin.Context) {
	checks := gin.H{}
	status := "ok"
	code := http.StatusOK

	if db, err := dbmodel.DB.DB(); err != nil || db.Ping() != nil {
		checks["database"] = "unreachable"
		status = "degraded"
		code = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	age := registry.Default.SnapshotAge()
	checks["registry_age_seconds"] = int64(age.Seconds())
	if len(registry.Default.ListActive()) == 0 {
		checks["registry"] = "empty"
		status = "degraded"
		code = http.StatusServiceUnavailable
	} else {
		checks["registry"] = "ok"
	}

	c.JSON(code, gin.H{"status": status, "checks": checks})
}

// Stats reports coarse process counters.
func Stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"uptime_seconds":       time.Now().Unix() - common.StartTime,
		"requests_handled":     requestCount.Load(),
		"active_models":        len(registry.Default.ListActive()),
		"registry_age_seconds": int64(registry.Default.SnapshotAge().Seconds()),
		"goroutines":           runtime.NumGoroutine(),
	})
}

// Version reports the build stamp.
func Version(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version": common.Version,
		"go":      runtime.Version(),
	})
}
