package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"raichain/process"
	"raichain/raierr"
)

func TestNewRegistersEveryMetric(t *testing.T) {
	h := New()
	families, err := h.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatalf("expected at least one registered metric family")
	}
}

func TestProcessObserverCountsByOperationAndCode(t *testing.T) {
	h := New()
	obs := NewProcessObserver(h)
	obs.OnBlock(process.OpAppend, nil, raierr.OK)
	obs.OnBlock(process.OpAppend, nil, raierr.OK)
	obs.OnBlock(process.OpRollback, nil, raierr.Fork)

	if got := testutil.ToFloat64(h.ProcessorOpsTotal.WithLabelValues("append", raierr.OK.String())); got != 2 {
		t.Fatalf("expected append/OK count 2, got %v", got)
	}
	if got := testutil.ToFloat64(h.ProcessorOpsTotal.WithLabelValues("rollback", raierr.Fork.String())); got != 1 {
		t.Fatalf("expected rollback/Fork count 1, got %v", got)
	}
}
