package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Observer captures telemetry for payment operations. A nil *Observer is a
// valid no-op receiver so components can be built without metrics.
type Observer struct {
	reconciliations  *prometheus.CounterVec
	gatewayDuration  *prometheus.HistogramVec
	gatewayErrors    *prometheus.CounterVec
	receiptDuration  prometheus.Histogram
	receiptErrors    prometheus.Counter
	receiptBytes     prometheus.Counter
	priceDiscrepancy *prometheus.CounterVec
	securityEvents   *prometheus.CounterVec
	intentsCreated   *prometheus.CounterVec
}

func NewObserver(namespace string, reg prometheus.Registerer) (*Observer, error) {
	if namespace == "" {
		namespace = "membership_payments"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	o := &Observer{
		reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliations_total",
			Help:      "Reconciliation outcomes by provider and resulting intent status.",
		}, []string{"provider", "status", "idempotent"}),
		gatewayDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_request_duration_seconds",
			Help:      "Latency of payment gateway REST calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "operation"}),
		gatewayErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_errors_total",
			Help:      "Failed payment gateway REST calls.",
		}, []string{"provider", "operation"}),
		receiptDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "receipt_upload_duration_seconds",
			Help:      "Latency of receipt uploads to object storage.",
			Buckets:   prometheus.DefBuckets,
		}),
		receiptErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receipt_upload_errors_total",
			Help:      "Failed receipt uploads.",
		}),
		receiptBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receipt_uploaded_bytes_total",
			Help:      "Cumulative size of stored receipts.",
		}),
		priceDiscrepancy: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "client_price_discrepancies_total",
			Help:      "Client-supplied amounts that disagreed with the catalog price.",
		}, []string{"tier"}),
		securityEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "security_events_total",
			Help:      "Security-relevant reconciliation events by kind.",
		}, []string{"kind"}),
		intentsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intents_created_total",
			Help:      "Payment intents created by provider and tier.",
		}, []string{"provider", "tier"}),
	}

	collectors := []prometheus.Collector{
		o.reconciliations,
		o.gatewayDuration,
		o.gatewayErrors,
		o.receiptDuration,
		o.receiptErrors,
		o.receiptBytes,
		o.priceDiscrepancy,
		o.securityEvents,
		o.intentsCreated,
	}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return nil, fmt.Errorf("register payment metric: %w", err)
		}
	}

	return o, nil
}

func (o *Observer) RecordReconciliation(provider string, status string, idempotent bool) {
	if o == nil {
		return
	}
	o.reconciliations.WithLabelValues(provider, status, fmt.Sprintf("%t", idempotent)).Inc()
}

func (o *Observer) RecordGatewayCall(provider string, operation string, duration time.Duration, err error) {
	if o == nil {
		return
	}
	o.gatewayDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
	if err != nil {
		o.gatewayErrors.WithLabelValues(provider, operation).Inc()
	}
}

func (o *Observer) RecordReceiptUpload(duration time.Duration, sizeBytes int, err error) {
	if o == nil {
		return
	}
	o.receiptDuration.Observe(duration.Seconds())
	if err != nil {
		o.receiptErrors.Inc()
		return
	}
	o.receiptBytes.Add(float64(sizeBytes))
}

func (o *Observer) RecordPriceDiscrepancy(tier string) {
	if o == nil {
		return
	}
	o.priceDiscrepancy.WithLabelValues(tier).Inc()
}

func (o *Observer) RecordSecurityEvent(kind string) {
	if o == nil {
		return
	}
	o.securityEvents.WithLabelValues(kind).Inc()
}

func (o *Observer) RecordIntentCreated(provider string, tier string) {
	if o == nil {
		return
	}
	o.intentsCreated.WithLabelValues(provider, tier).Inc()
}
