package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "folio_request_duration_seconds",
			Help: "HTTP request duration in seconds",
		},
		[]string{"method", "endpoint"},
	)

	IntroStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "folio_intro_streams",
			Help: "Number of open intro streams",
		},
	)

	// IntroOutcomes counts how intros ended: played, skipped or seen.
	IntroOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_intro_outcomes_total",
			Help: "Intro runs by language and outcome",
		},
		[]string{"lang", "outcome"},
	)

	EqualizerClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "folio_equalizer_clients",
			Help: "Number of connected equalizer sockets",
		},
	)

	EqualizerFrames = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "folio_equalizer_frames_total",
			Help: "Equalizer frames sent",
		},
	)

	ContactMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_contact_messages_total",
			Help: "Contact form submissions by result",
		},
		[]string{"result"},
	)

	CleanupRemoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_cleanup_removed_total",
			Help: "Rows removed by scheduled cleanup jobs",
		},
		[]string{"job"},
	)
)

// Middleware records request count and latency by route pattern.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		RequestCount.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		RequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}
