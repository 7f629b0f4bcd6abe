package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserverRecordsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	o, err := NewObserver("test", reg)
	require.NoError(t, err)

	o.RecordReconciliation("paystack", "VERIFIED", false)
	o.RecordReconciliation("paystack", "VERIFIED", true)
	o.RecordGatewayCall("paystack", "verify", 20*time.Millisecond, errors.New("timeout"))
	o.RecordReceiptUpload(time.Millisecond, 128, nil)
	o.RecordPriceDiscrepancy("corporate")

	assert.Equal(t, 1.0, testutil.ToFloat64(o.reconciliations.WithLabelValues("paystack", "VERIFIED", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.gatewayErrors.WithLabelValues("paystack", "verify")))
	assert.Equal(t, 128.0, testutil.ToFloat64(o.receiptBytes))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.priceDiscrepancy.WithLabelValues("corporate")))
}

func TestObserverRegistersTwiceOnSameRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewObserver("test", reg)
	require.NoError(t, err)

	_, err = NewObserver("test", reg)
	require.NoError(t, err)
}

func TestNilObserverIsNoop(t *testing.T) {
	var o *Observer
	o.RecordReconciliation("stripe", "FAILED", false)
	o.RecordSecurityEvent("amount_mismatch")
	o.RecordReceiptUpload(time.Second, 1, errors.New("boom"))
}
