// Package observability holds Prometheus collectors and OpenTelemetry tracing setup.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RateLimitRejections counts 429 responses by action.
	RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dreambook_rate_limit_rejections_total",
		Help: "Requests rejected by the rate limiter, by action",
	}, []string{"action"})

	// BotCacheLookups counts credential cache lookups by result (hit, miss, not_found).
	BotCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dreambook_bot_cache_lookups_total",
		Help: "Bot credential cache lookups by result",
	}, []string{"result"})

	// VotesCast counts vote ledger outcomes by action and voter type.
	VotesCast = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dreambook_votes_total",
		Help: "Votes processed by resulting action and voter type",
	}, []string{"action", "voter_type"})

	// ModerationFlags counts content flagged by the keyword filter, by content type.
	ModerationFlags = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dreambook_moderation_flags_total",
		Help: "Content items flagged by the moderation filter",
	}, []string{"type"})

	// EmailsSent counts outbound emails by kind and outcome.
	EmailsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dreambook_emails_total",
		Help: "Outbound emails by kind and outcome",
	}, []string{"kind", "outcome"})

	// RedisErrors counts Redis command errors by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dreambook_redis_errors_total",
		Help: "Redis command errors by command",
	}, []string{"command"})

	// FeedConnections is the number of open live-feed websockets.
	FeedConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dreambook_feed_connections",
		Help: "Open live feed websocket connections",
	})

	// FeedDrops counts feed messages dropped because a client buffer was full or closed.
	FeedDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dreambook_feed_drops_total",
		Help: "Live feed messages dropped by reason",
	}, []string{"reason"})
)
