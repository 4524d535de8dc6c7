package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// 课程编辑器 websocket 事件
	BuilderEventCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "course_builder_events_total",
			Help: "Course builder events by type and direction",
		},
		[]string{"type", "direction"},
	)

	BuilderSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "course_builder_active_sessions",
			Help: "Number of open course builder sessions",
		},
	)

	ModuleMutationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "course_module_mutations_total",
			Help: "Course module writes by operation and result",
		},
		[]string{"op", "result"},
	)

	AIRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_requests_total",
			Help: "Upstream LLM requests by kind and status",
		},
		[]string{"kind", "status"},
	)

	AIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_request_duration_seconds",
			Help:    "Duration of upstream LLM requests",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"kind"},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			BuilderEventCounter,
			BuilderSessions,
			ModuleMutationCounter,
			AIRequestCounter,
			AIRequestDuration,
		)
	})
}

// ObserveMutation 记录一次模块写操作的结果
func ObserveMutation(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	ModuleMutationCounter.WithLabelValues(op, result).Inc()
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
