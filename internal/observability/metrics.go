package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupchat_http_requests_total",
			Help: "Total number of HTTP requests processed by the group chat service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "groupchat_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	messagesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupchat_messages_sent_total",
			Help: "Total number of messages appended, by content type.",
		},
		[]string{"content_type"},
	)
	votesCastTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "groupchat_poll_votes_total",
			Help: "Total number of poll votes cast or moved.",
		},
	)
	reactionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "groupchat_reactions_total",
			Help: "Total number of reactions added or replaced.",
		},
	)
	unreadResetsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "groupchat_unread_resets_total",
			Help: "Total number of unread counter resets triggered by reads.",
		},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "groupchat_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		messagesSentTotal,
		votesCastTotal,
		reactionsTotal,
		unreadResetsTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncMessageSent(contentType string) {
	messagesSentTotal.WithLabelValues(contentType).Inc()
}

func IncVoteCast() {
	votesCastTotal.Inc()
}

func IncReaction() {
	reactionsTotal.Inc()
}

func IncUnreadReset() {
	unreadResetsTotal.Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
