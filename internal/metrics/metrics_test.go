package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInitRegistersOnce(t *testing.T) {
	Init()
	Init()

	before := testutil.ToFloat64(ResolutionsTotal.WithLabelValues("success"))
	ResolutionsTotal.WithLabelValues("success").Inc()
	if got := testutil.ToFloat64(ResolutionsTotal.WithLabelValues("success")); got != before+1 {
		t.Fatalf("resolutions = %v, want %v", got, before+1)
	}

	SourceBreakerOpen.WithLabelValues("web").Set(1)
	n, err := testutil.GatherAndCount(prometheus.DefaultGatherer, "resolver_source_breaker_open")
	if err != nil || n == 0 {
		t.Fatalf("breaker gauge not gathered: n=%d err=%v", n, err)
	}

	expected := `
# HELP resolver_fetcher_queue_length Requests waiting for the outbound worker.
# TYPE resolver_fetcher_queue_length gauge
resolver_fetcher_queue_length 3
`
	FetcherQueueLength.Set(3)
	if err := testutil.CollectAndCompare(FetcherQueueLength, strings.NewReader(expected)); err != nil {
		t.Fatal(err)
	}
}
