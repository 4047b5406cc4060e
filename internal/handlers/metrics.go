package handlers

import (
	"fmt"
	"maps"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vtria/erp/internal/services"
	"github.com/vtria/erp/pkg/logger"
	"gorm.io/gorm"
)

var startTime = time.Now()

// MetricsHandler serves Prometheus text-format gauges.
type MetricsHandler struct {
	db        *gorm.DB
	queue     services.TaskQueue
	hub       *services.SSEHub
	dashboard *services.DashboardService
}

func NewMetricsHandler(db *gorm.DB, queue services.TaskQueue, hub *services.SSEHub, dashboard *services.DashboardService) *MetricsHandler {
	return &MetricsHandler{db: db, queue: queue, hub: hub, dashboard: dashboard}
}

// Metrics returns Prometheus-compatible text format metrics.
// GET /metrics
func (h *MetricsHandler) Metrics(c *gin.Context) {
	var b strings.Builder

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	writeGauge(&b, "vtria_uptime_seconds", "Time since server start in seconds", time.Since(startTime).Seconds())
	writeGauge(&b, "vtria_goroutines", "Number of active goroutines", float64(runtime.NumGoroutine()))
	writeGauge(&b, "vtria_memory_alloc_bytes", "Current heap allocation in bytes", float64(m.Alloc))
	writeGauge(&b, "vtria_gc_runs_total", "Total number of GC runs", float64(m.NumGC))

	if h.db != nil {
		if sqlDB, err := h.db.DB(); err == nil {
			stats := sqlDB.Stats()
			writeGauge(&b, "vtria_db_open_connections", "Number of open DB connections", float64(stats.OpenConnections))
			writeGauge(&b, "vtria_db_in_use_connections", "Number of in-use DB connections", float64(stats.InUse))
			writeGauge(&b, "vtria_db_idle_connections", "Number of idle DB connections", float64(stats.Idle))
		}
	}

	if h.hub != nil {
		writeGauge(&b, "vtria_sse_active_clients", "Number of active SSE connections", float64(h.hub.ClientCount()))
	}

	queueAsync := 0.0
	if h.queue != nil && h.queue.IsAsync() {
		queueAsync = 1.0
	}
	writeGauge(&b, "vtria_queue_async_enabled", "Whether the Redis task queue is enabled (1=yes, 0=no)", queueAsync)

	if h.dashboard != nil {
		stats, err := h.dashboard.Get(&services.DashboardRequest{Days: 1}, nil)
		if err != nil {
			logger.Warn().Err(err).Msg("metrics: dashboard aggregation failed")
		} else {
			states := make(map[string]float64, len(stats.CasesByState))
			for _, s := range stats.CasesByState {
				states[s.State] = float64(s.Count)
			}
			writeGaugeVec(&b, "vtria_cases", "Cases by workflow state", "state", states)
			writeGauge(&b, "vtria_cases_open", "Cases not closed or cancelled", float64(stats.OpenCases))
			writeGauge(&b, "vtria_cases_sla_breached", "Open cases past their SLA", float64(stats.BreachedCases))

			approvals := make(map[string]float64, len(stats.PendingApprovals))
			for _, a := range stats.PendingApprovals {
				approvals[a.EntityType] = float64(a.Count)
			}
			writeGaugeVec(&b, "vtria_approvals_pending", "Pending approval requests by type", "type", approvals)
			writeGauge(&b, "vtria_leave_pending", "Leave applications awaiting a decision", float64(stats.PendingLeave))
			writeGauge(&b, "vtria_stock_low_items", "Item/warehouse pairs at or below reorder level", float64(stats.LowStockItems))
		}
	}

	c.Data(200, "text/plain; version=0.0.4; charset=utf-8", []byte(b.String()))
}

func writeGauge(b *strings.Builder, name, help string, value float64) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s gauge\n", name)
	fmt.Fprintf(b, "%s %g\n\n", name, value)
}

// writeGaugeVec writes one sample per label value. An empty map still
// emits the HELP/TYPE header so the series is discoverable.
func writeGaugeVec(b *strings.Builder, name, help, label string, values map[string]float64) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s gauge\n", name)
	for _, k := range slices.Sorted(maps.Keys(values)) {
		fmt.Fprintf(b, "%s{%s=%q} %g\n", name, label, k, values[k])
	}
	b.WriteString("\n")
}
