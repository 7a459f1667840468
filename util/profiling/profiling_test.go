package profiling

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "chaincore",
		Name:      "test_gauge",
		Help:      "Gauge used by TestHandler",
	})
	registry.MustRegister(gauge)
	gauge.Set(7)

	server := httptest.NewServer(newHandler(registry))
	defer server.Close()

	response, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("TestHandler: GET /metrics: %s", err)
	}
	body, err := io.ReadAll(response.Body)
	response.Body.Close()
	if err != nil {
		t.Fatalf("TestHandler: reading /metrics: %s", err)
	}
	if response.StatusCode != http.StatusOK {
		t.Fatalf("TestHandler: /metrics returned status %d", response.StatusCode)
	}
	if !strings.Contains(string(body), "chaincore_test_gauge 7") {
		t.Fatalf("TestHandler: /metrics does not contain the test gauge:\n%s", body)
	}

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	response, err = client.Get(server.URL + "/")
	if err != nil {
		t.Fatalf("TestHandler: GET /: %s", err)
	}
	response.Body.Close()
	if response.StatusCode != http.StatusSeeOther {
		t.Fatalf("TestHandler: expected / to redirect, got status %d", response.StatusCode)
	}
	if location := response.Header.Get("Location"); location != "/debug/pprof/" {
		t.Fatalf("TestHandler: unexpected redirect location %q", location)
	}
}
