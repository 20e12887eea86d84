package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	exchangeSuccessTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bridge_token_exchanges_total",
		Help: "Total number of successful token exchanges.",
	})
	exchangeFailureTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_token_exchange_failures_total",
		Help: "Total number of failed token exchanges, by reason.",
	}, []string{"reason"})
	sessionRefreshTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bridge_session_refreshes_total",
		Help: "Total number of refresh-token grants.",
	})
	profileProvisionedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bridge_profiles_provisioned_total",
		Help: "Total number of profiles created on first token exchange.",
	})
	webhookProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_webhook_events_processed_total",
		Help: "Total number of processed billing webhook events, by type.",
	}, []string{"type"})
	webhookDuplicateTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bridge_webhook_events_duplicate_total",
		Help: "Total number of replayed webhook deliveries that were skipped.",
	})
	webhookUnhandledTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bridge_webhook_events_unhandled_total",
		Help: "Total number of webhook events with no handler.",
	})
	freePlanMissingTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bridge_free_plan_missing_total",
		Help: "Times a deleted subscription could not fall back to the free plan.",
	})
	emailSentTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bridge_emails_sent_total",
		Help: "Total number of transactional emails sent.",
	})
	emailFailureTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bridge_email_failures_total",
		Help: "Total number of transactional email send failures.",
	})
)

// InitCustomMetrics registers the bridge metrics with the given registerer.
// It should be called once at application startup.
func InitCustomMetrics(reg prometheus.Registerer) {
	collectors := []prometheus.Collector{
		exchangeSuccessTotal,
		exchangeFailureTotal,
		sessionRefreshTotal,
		profileProvisionedTotal,
		webhookProcessedTotal,
		webhookDuplicateTotal,
		webhookUnhandledTotal,
		freePlanMissingTotal,
		emailSentTotal,
		emailFailureTotal,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Msg("Failed to register metric")
		}
	}
}

func IncExchangeSuccess()              { exchangeSuccessTotal.Inc() }
func IncExchangeFailure(reason string) { exchangeFailureTotal.WithLabelValues(reason).Inc() }
func IncSessionRefresh()               { sessionRefreshTotal.Inc() }
func IncProfileProvisioned()           { profileProvisionedTotal.Inc() }
func IncWebhookProcessed(typ string)   { webhookProcessedTotal.WithLabelValues(typ).Inc() }
func IncWebhookDuplicate()             { webhookDuplicateTotal.Inc() }
func IncWebhookUnhandled()             { webhookUnhandledTotal.Inc() }
func IncFreePlanMissing()              { freePlanMissingTotal.Inc() }
func IncEmailSent()                    { emailSentTotal.Inc() }
func IncEmailFailure()                 { emailFailureTotal.Inc() }
