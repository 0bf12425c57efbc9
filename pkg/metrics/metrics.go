// Package metrics provides Prometheus metrics for zstack-macpool.
//
// This package exposes metrics for monitoring MAC range and pool handling:
// - Range generation latency and output size
// - Range validation results
// - MAC pool size and allocation statistics
// - Controller reconciliation metrics
// - Pool service request latency
//
// Metrics are exposed via the /metrics endpoint on the controller's
// metrics server (default port 8080).
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

const (
	// Namespace is the Prometheus metrics namespace
	Namespace = "zstack_macpool"

	// Subsystem names for different metric categories
	SubsystemMACRange   = "macrange"
	SubsystemAllocator  = "allocator"
	SubsystemController = "controller"
	SubsystemServer     = "server"
)

var (
	// registerOnce ensures metrics are registered only once
	registerOnce sync.Once

	// ---- MAC Range Metrics ----

	// GenerateDuration measures the time taken to enumerate a MAC range
	// Labels: result (success/failure)
	GenerateDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: SubsystemMACRange,
			Name:      "generate_duration_seconds",
			Help:      "Time taken to generate MAC addresses from a range in seconds",
			Buckets:   []float64{0.00001, 0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"result"},
	)

	// GenerateTotal counts range generation requests
	// Labels: result (success/failure)
	GenerateTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: SubsystemMACRange,
			Name:      "generate_total",
			Help:      "Total number of MAC range generation operations",
		},
		[]string{"result"},
	)

	// GeneratedAddresses observes how many addresses each generation returned
	GeneratedAddresses = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: SubsystemMACRange,
			Name:      "generated_addresses",
			Help:      "Number of MAC addresses returned per generation",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		},
	)

	// ValidationTotal counts range validations
	// Labels: result (valid/invalid)
	ValidationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: SubsystemMACRange,
			Name:      "validation_total",
			Help:      "Total number of MAC range validations",
		},
		[]string{"result"},
	)

	// ---- MAC Allocator Metrics ----

	// AllocatorTotalMACs tracks the size of each pool
	// Labels: pool (pool name)
	AllocatorTotalMACs = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: SubsystemAllocator,
			Name:      "total_macs",
			Help:      "Number of MAC addresses in each pool",
		},
		[]string{"pool"},
	)

	// AllocatorAvailableMACs tracks the number of available MACs per pool
	// Labels: pool (pool name)
	AllocatorAvailableMACs = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: SubsystemAllocator,
			Name:      "available_macs",
			Help:      "Number of available MAC addresses in each pool",
		},
		[]string{"pool"},
	)

	// AllocatorUsedMACs tracks the number of used MACs per pool
	// Labels: pool (pool name)
	AllocatorUsedMACs = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: SubsystemAllocator,
			Name:      "used_macs",
			Help:      "Number of used MAC addresses in each pool",
		},
		[]string{"pool"},
	)

	// MACAllocationTotal counts allocation and release operations
	// Labels: pool (pool name), operation (allocate/release), result (success/failure)
	MACAllocationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: SubsystemAllocator,
			Name:      "operation_total",
			Help:      "Total number of MAC allocation and release operations",
		},
		[]string{"pool", "operation", "result"},
	)

	// MACAllocationDuration measures the time taken for MAC allocation
	MACAllocationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: SubsystemAllocator,
			Name:      "allocation_duration_seconds",
			Help:      "Time taken for MAC allocation in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
	)

	// ---- Controller Metrics ----

	// ControllerReconcileDuration measures the time taken for controller reconciliation
	// Labels: controller (macpool), result (success/failure/requeue)
	ControllerReconcileDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: SubsystemController,
			Name:      "reconcile_duration_seconds",
			Help:      "Time taken for controller reconciliation in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"controller", "result"},
	)

	// ControllerReconcileTotal counts the total number of controller reconciliations
	// Labels: controller (macpool), result (success/failure/requeue)
	ControllerReconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: SubsystemController,
			Name:      "reconcile_total",
			Help:      "Total number of controller reconciliations",
		},
		[]string{"controller", "result"},
	)

	// ---- Server Metrics ----

	// ServerRequestDuration measures pool service request latency
	// Labels: endpoint (request path), code (HTTP status code)
	ServerRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: SubsystemServer,
			Name:      "request_duration_seconds",
			Help:      "Time taken to serve pool service requests in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"endpoint", "code"},
	)

	// ServerRequestsInFlight tracks the number of requests currently being served
	ServerRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: SubsystemServer,
			Name:      "requests_in_flight",
			Help:      "Number of pool service requests currently being processed",
		},
	)
)

// Register registers all metrics with the controller-runtime metrics registry.
// This function is safe to call multiple times; metrics will only be registered once.
func Register() {
	registerOnce.Do(func() {
		// MAC range metrics
		metrics.Registry.MustRegister(GenerateDuration)
		metrics.Registry.MustRegister(GenerateTotal)
		metrics.Registry.MustRegister(GeneratedAddresses)
		metrics.Registry.MustRegister(ValidationTotal)

		// Allocator metrics
		metrics.Registry.MustRegister(AllocatorTotalMACs)
		metrics.Registry.MustRegister(AllocatorAvailableMACs)
		metrics.Registry.MustRegister(AllocatorUsedMACs)
		metrics.Registry.MustRegister(MACAllocationTotal)
		metrics.Registry.MustRegister(MACAllocationDuration)

		// Controller metrics
		metrics.Registry.MustRegister(ControllerReconcileDuration)
		metrics.Registry.MustRegister(ControllerReconcileTotal)

		// Server metrics
		metrics.Registry.MustRegister(ServerRequestDuration)
		metrics.Registry.MustRegister(ServerRequestsInFlight)
	})
}
