// Package metrics holds the Prometheus collectors of the server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ModelResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "testmind_model_resolutions_total",
		Help: "Model resolutions by the strategy that succeeded (or \"failed\")",
	}, []string{"usage", "strategy"})

	ChatTurns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "testmind_chat_turns_total",
		Help: "Assistant turns by mode and outcome",
	}, []string{"mode", "outcome"})

	ChatTurnSteps = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "testmind_chat_turn_steps",
		Help:    "Model invocation steps used per assistant turn",
		Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10},
	}, []string{"mode"})

	ToolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "testmind_tool_calls_total",
		Help: "Assistant tool invocations by tool and status",
	}, []string{"tool", "status"})

	TestRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "testmind_test_runs_total",
		Help: "Automation executions by framework and final status",
	}, []string{"framework", "status"})

	ImportRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "testmind_import_rows_total",
		Help: "Excel import rows by outcome",
	}, []string{"outcome"})

	IntegrationRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "testmind_integration_requests_total",
		Help: "Outbound integration requests by service and result",
	}, []string{"service", "result"})

	StaleRunsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "testmind_stale_test_runs_swept_total",
		Help: "Test runs marked failed by the stale run sweeper",
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
