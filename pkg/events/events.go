// Package events provides Kubernetes Event recording for zstack-macpool.
//
// Events track MacPool lifecycle and MAC assignment so that operators can
// see them via kubectl describe.
//
// Event Types:
// - Normal: Routine operations (e.g., pool built, MAC allocated)
// - Warning: Potential issues or errors (e.g., empty range, pool exhausted)
//
// Usage:
//
//	recorder := events.NewRecorder(clientset, "macpool-controller", scheme)
//	recorder.PoolReady(pool, 4096)
//	recorder.RangeValidationFailed(pool, err)
//
// Reference: Kubernetes client-go tools/record
package events

import (
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes"
	typedcorev1 "k8s.io/client-go/kubernetes/typed/core/v1"
	"k8s.io/client-go/tools/record"
)

// Event reason constants
// These are used as the "reason" field in Kubernetes Events
const (
	// Pool lifecycle events
	ReasonPoolReady             = "PoolReady"
	ReasonPoolBuildFailed       = "PoolBuildFailed"
	ReasonPoolDeleted           = "PoolDeleted"
	ReasonRangeValidationFailed = "RangeValidationFailed"
	ReasonRangeEmpty            = "RangeEmpty"

	// MAC allocation events
	ReasonMACAllocated        = "MACAllocated"
	ReasonMACAllocationFailed = "MACAllocationFailed"
	ReasonMACReleased         = "MACReleased"
	ReasonMACReleaseFailed    = "MACReleaseFailed"
	ReasonPoolExhausted       = "PoolExhausted"
)

// Recorder wraps the Kubernetes event recorder with MacPool-specific methods
type Recorder struct {
	// recorder is the underlying Kubernetes event recorder
	recorder record.EventRecorder

	// component is the component name for events
	component string
}

// NewRecorder creates a new event recorder
//
// Parameters:
//   - clientset: Kubernetes clientset for creating events
//   - component: Component name (e.g., "macpool-controller")
//   - scheme: Runtime scheme for object type resolution
//
// Returns:
//   - *Recorder: Event recorder instance
func NewRecorder(clientset kubernetes.Interface, component string, scheme *runtime.Scheme) *Recorder {
	eventBroadcaster := record.NewBroadcaster()
	eventBroadcaster.StartRecordingToSink(&typedcorev1.EventSinkImpl{
		Interface: clientset.CoreV1().Events(""),
	})

	recorder := eventBroadcaster.NewRecorder(scheme, corev1.EventSource{
		Component: component,
	})

	return &Recorder{
		recorder:  recorder,
		component: component,
	}
}

// NewRecorderFromEventRecorder creates a Recorder from an existing event recorder
// This is useful when using controller-runtime's event recorder
func NewRecorderFromEventRecorder(recorder record.EventRecorder, component string) *Recorder {
	return &Recorder{
		recorder:  recorder,
		component: component,
	}
}

// Component returns the component name events are attributed to.
func (r *Recorder) Component() string {
	return r.component
}

// ---- Pool Lifecycle Events ----

// PoolReady records a successful pool build event
func (r *Recorder) PoolReady(obj runtime.Object, size int) {
	r.recorder.Eventf(obj, corev1.EventTypeNormal, ReasonPoolReady,
		"MAC pool ready with %d addresses", size)
}

// PoolBuildFailed records a pool build failure event
func (r *Recorder) PoolBuildFailed(obj runtime.Object, err error) {
	r.recorder.Eventf(obj, corev1.EventTypeWarning, ReasonPoolBuildFailed,
		"Failed to build MAC pool: %v", err)
}

// PoolDeleted records a pool deletion event
func (r *Recorder) PoolDeleted(obj runtime.Object, name string) {
	r.recorder.Eventf(obj, corev1.EventTypeNormal, ReasonPoolDeleted,
		"MAC pool %s deleted", name)
}

// RangeValidationFailed records a malformed range event
func (r *Recorder) RangeValidationFailed(obj runtime.Object, err error) {
	r.recorder.Eventf(obj, corev1.EventTypeWarning, ReasonRangeValidationFailed,
		"MAC range validation failed: %v", err)
}

// RangeEmpty records a range that contains no assignable address
func (r *Recorder) RangeEmpty(obj runtime.Object, start, end string) {
	r.recorder.Eventf(obj, corev1.EventTypeWarning, ReasonRangeEmpty,
		"MAC range %s-%s contains no unicast address", start, end)
}

// ---- MAC Allocation Events ----

// MACAllocated records a successful MAC allocation event
func (r *Recorder) MACAllocated(obj runtime.Object, mac, pool string) {
	r.recorder.Eventf(obj, corev1.EventTypeNormal, ReasonMACAllocated,
		"MAC address %s allocated from pool %s", mac, pool)
}

// MACAllocationFailed records a MAC allocation failure event
func (r *Recorder) MACAllocationFailed(obj runtime.Object, pool string, err error) {
	r.recorder.Eventf(obj, corev1.EventTypeWarning, ReasonMACAllocationFailed,
		"Failed to allocate MAC from pool %s: %v", pool, err)
}

// MACReleased records a successful MAC release event
func (r *Recorder) MACReleased(obj runtime.Object, mac, pool string) {
	r.recorder.Eventf(obj, corev1.EventTypeNormal, ReasonMACReleased,
		"MAC address %s released to pool %s", mac, pool)
}

// MACReleaseFailed records a MAC release failure event
func (r *Recorder) MACReleaseFailed(obj runtime.Object, mac string, err error) {
	r.recorder.Eventf(obj, corev1.EventTypeWarning, ReasonMACReleaseFailed,
		"Failed to release MAC address %s: %v", mac, err)
}

// PoolExhausted records a pool exhaustion event
func (r *Recorder) PoolExhausted(obj runtime.Object, pool string) {
	r.recorder.Eventf(obj, corev1.EventTypeWarning, ReasonPoolExhausted,
		"MAC pool %s has no available addresses", pool)
}
