package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordDispatch(t *testing.T) {
	c := DispatchTasks.WithLabelValues("search", OutcomeOverflow)
	before := testutil.ToFloat64(c)

	RecordDispatch("search", OutcomeOverflow)
	RecordDispatch("search", OutcomeOverflow)

	if got := testutil.ToFloat64(c) - before; got != 2 {
		t.Errorf("overflow count increased by %v, want 2", got)
	}
}

func TestRecordTermination(t *testing.T) {
	c := LoopTerminations.WithLabelValues(LoopResearcher, "budget")
	before := testutil.ToFloat64(c)

	RecordTermination(LoopResearcher, "budget")

	if got := testutil.ToFloat64(c) - before; got != 1 {
		t.Errorf("termination count increased by %v, want 1", got)
	}
}
