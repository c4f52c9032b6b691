package server

import (
	"context"
	"fmt"
	"time"

	"medisense/internal/opencv/memory"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/metrics"
	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

// NewRegistry returns a registry holding the Go runtime collectors and, when
// mem is set, a gauge of native image memory in use.
func NewRegistry(namespace string, mem *memory.Tracker) *stdprometheus.Registry {
	registry := stdprometheus.NewRegistry()
	registry.MustRegister(
		stdprometheus.NewGoCollector(),
		stdprometheus.NewProcessCollector(stdprometheus.ProcessCollectorOpts{}),
	)
	if mem != nil {
		registry.MustRegister(stdprometheus.NewGaugeFunc(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "native_memory_bytes",
			Help:      "Bytes held by live OpenCV Mats.",
		}, func() float64 {
			return float64(mem.InUse())
		}))
	}
	return registry
}

func CreateMetrics(registry stdprometheus.Registerer, namespace, subsystem string) endpoint.Middleware {
	fieldKeys := []string{"method", "error"}
	countVec := stdprometheus.NewCounterVec(stdprometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request_count",
		Help:      "Number of requests received.",
	}, fieldKeys)
	latencyVec := stdprometheus.NewSummaryVec(stdprometheus.SummaryOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request_latency_seconds",
		Help:      "Total duration of requests in seconds.",
	}, fieldKeys)
	registry.MustRegister(countVec, latencyVec)

	var (
		requestCount   metrics.Counter   = kitprometheus.NewCounter(countVec)
		requestLatency metrics.Histogram = kitprometheus.NewSummary(latencyVec)
	)

	return func(next endpoint.Endpoint) endpoint.Endpoint {
		return func(ctx context.Context, request interface{}) (response interface{}, err error) {
			defer func(begin time.Time) {
				lvs := []string{"method", pathFromContext(ctx), "error", fmt.Sprint(err != nil)}
				requestCount.With(lvs...).Add(1)
				requestLatency.With(lvs...).Observe(time.Since(begin).Seconds())
			}(time.Now())
			return next(ctx, request)
		}
	}
}
