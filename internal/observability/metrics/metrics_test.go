package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveGenerateAndFile(t *testing.T) {
	Init(nil, nil)

	before := testutil.ToFloat64(generateTotal.WithLabelValues(ResultSuccess))
	ObserveGenerate(ResultSuccess, 25*time.Millisecond)
	if got := testutil.ToFloat64(generateTotal.WithLabelValues(ResultSuccess)); got != before+1 {
		t.Fatalf("expected generate total %v, got %v", before+1, got)
	}

	paymentsBefore := testutil.ToFloat64(paymentsTotal)
	amountBefore := testutil.ToFloat64(diagnostics.WithLabelValues("amount"))
	ObserveFile(17, 3, map[string]int{"amount": 2})
	if got := testutil.ToFloat64(paymentsTotal); got != paymentsBefore+3 {
		t.Fatalf("expected payments %v, got %v", paymentsBefore+3, got)
	}
	if got := testutil.ToFloat64(lastSequence); got != 17 {
		t.Fatalf("expected last sequence 17, got %v", got)
	}
	if got := testutil.ToFloat64(diagnostics.WithLabelValues("amount")); got != amountBefore+2 {
		t.Fatalf("expected amount diagnostics %v, got %v", amountBefore+2, got)
	}
}

func TestObserveExportDefaultsLabels(t *testing.T) {
	Init(nil, nil)

	before := testutil.ToFloat64(exportTotal.WithLabelValues("unknown", ResultSuccess))
	ObserveExport("", "", time.Millisecond)
	if got := testutil.ToFloat64(exportTotal.WithLabelValues("unknown", ResultSuccess)); got != before+1 {
		t.Fatalf("expected export total %v, got %v", before+1, got)
	}
}
