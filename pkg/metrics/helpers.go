// Package metrics provides Prometheus metrics for zstack-macpool.
package metrics

import (
	"strconv"
	"time"
)

// Result constants for metric labels
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultRequeue = "requeue"
	ResultValid   = "valid"
	ResultInvalid = "invalid"
)

// Operation constants for allocator metrics
const (
	OperationAllocate = "allocate"
	OperationRelease  = "release"
)

// Controller constants for controller metrics
const (
	ControllerMacPool = "macpool"
)

// Timer is a helper for measuring operation duration
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer starting from now
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration returns the duration since the timer was created
func (t *Timer) ObserveDuration() time.Duration {
	return time.Since(t.start)
}

// RecordGenerate records a range generation
//
// Parameters:
//   - err: The error from the operation (nil for success)
//   - count: Number of addresses returned
//   - duration: The duration of the operation
func RecordGenerate(err error, count int, duration time.Duration) {
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}

	GenerateDuration.WithLabelValues(result).Observe(duration.Seconds())
	GenerateTotal.WithLabelValues(result).Inc()
	if err == nil {
		GeneratedAddresses.Observe(float64(count))
	}
}

// RecordValidation records a range validation outcome
func RecordValidation(valid bool) {
	result := ResultInvalid
	if valid {
		result = ResultValid
	}
	ValidationTotal.WithLabelValues(result).Inc()
}

// RecordAllocation records a MAC allocation or release
//
// Parameters:
//   - pool: The pool name
//   - operation: allocate or release
//   - err: The error from the operation (nil for success)
//   - duration: The duration of the operation
func RecordAllocation(pool, operation string, err error, duration time.Duration) {
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}

	MACAllocationTotal.WithLabelValues(pool, operation, result).Inc()
	if operation == OperationAllocate {
		MACAllocationDuration.Observe(duration.Seconds())
	}
}

// UpdatePoolStats updates the size and usage statistics for a pool
//
// Parameters:
//   - pool: The pool name
//   - total: The number of addresses in the pool
//   - available: The number of available MACs
//   - used: The number of used MACs
func UpdatePoolStats(pool string, total, available, used int) {
	AllocatorTotalMACs.WithLabelValues(pool).Set(float64(total))
	AllocatorAvailableMACs.WithLabelValues(pool).Set(float64(available))
	AllocatorUsedMACs.WithLabelValues(pool).Set(float64(used))
}

// DeletePoolMetrics removes metrics for a deleted pool
func DeletePoolMetrics(pool string) {
	AllocatorTotalMACs.DeleteLabelValues(pool)
	AllocatorAvailableMACs.DeleteLabelValues(pool)
	AllocatorUsedMACs.DeleteLabelValues(pool)
}

// RecordControllerReconcile records a controller reconciliation metric
//
// Parameters:
//   - controller: The controller name (macpool)
//   - result: The result of the reconciliation (success/failure/requeue)
//   - duration: The duration of the reconciliation
func RecordControllerReconcile(controller, result string, duration time.Duration) {
	ControllerReconcileDuration.WithLabelValues(controller, result).Observe(duration.Seconds())
	ControllerReconcileTotal.WithLabelValues(controller, result).Inc()
}

// RecordServerRequest records a served pool service request
func RecordServerRequest(endpoint string, code int, duration time.Duration) {
	ServerRequestDuration.WithLabelValues(endpoint, strconv.Itoa(code)).Observe(duration.Seconds())
}

// IncrementServerRequestsInFlight increments the requests in flight gauge
func IncrementServerRequestsInFlight() {
	ServerRequestsInFlight.Inc()
}

// DecrementServerRequestsInFlight decrements the requests in flight gauge
func DecrementServerRequestsInFlight() {
	ServerRequestsInFlight.Dec()
}
