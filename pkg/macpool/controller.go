// Package macpool provides the MacPool controller implementation.
//
// The MacPoolReconciler watches MacPool resources and keeps one in-memory
// MAC allocator per pool. The controller is responsible for:
// - Validating the MAC ranges of each MacPool
// - Building the pool allocator, carrying allocations over on spec changes
// - Updating MacPool status with pool size, usage and an address preview
// - Recording allocated MACs in status, so a new leader resumes them
// - Dropping the allocator and its metrics when a MacPool is deleted
//
// Allocators are served to the pool service through GetAllocator.
package macpool

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/klog/v2"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/builder"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"
	"sigs.k8s.io/controller-runtime/pkg/event"
	"sigs.k8s.io/controller-runtime/pkg/handler"
	"sigs.k8s.io/controller-runtime/pkg/predicate"
	"sigs.k8s.io/controller-runtime/pkg/source"

	networkv1 "github.com/jiayi-1994/zstack-macpool/api/v1"
	"github.com/jiayi-1994/zstack-macpool/pkg/allocator"
	"github.com/jiayi-1994/zstack-macpool/pkg/config"
	"github.com/jiayi-1994/zstack-macpool/pkg/events"
	"github.com/jiayi-1994/zstack-macpool/pkg/macrange"
	"github.com/jiayi-1994/zstack-macpool/pkg/metrics"
	"github.com/jiayi-1994/zstack-macpool/pkg/types"
)

const (
	// ControllerName is the name of this controller
	ControllerName = "macpool-controller"

	// DefaultPoolName is the pool built from configuration defaults
	DefaultPoolName = types.DefaultPoolName

	// StatusResyncInterval is how often status is refreshed so that
	// allocations made through the pool service show up in usage counts
	StatusResyncInterval = time.Minute

	// persistQueueSize bounds pending allocation-triggered status writes.
	// Requests beyond it wait for the periodic resync.
	persistQueueSize = 256
)

// errInvalidSpec marks failures that only a spec change can fix.
var errInvalidSpec = errors.New("invalid MacPool spec")

// poolEntry is an allocator and the MacPool generation it was built from.
type poolEntry struct {
	pool       *allocator.MACPool
	generation int64

	// fromConfig marks the default pool built from pool.defaultRanges,
	// which has no MacPool object behind it
	fromConfig bool
}

// MacPoolReconciler reconciles a MacPool object.
type MacPoolReconciler struct {
	client   client.Client
	scheme   *runtime.Scheme
	recorder *events.Recorder
	config   *config.Config
	pools    map[string]poolEntry
	poolsMu  sync.RWMutex

	// persist queues reconciles that record allocations in MacPool status
	persist chan event.GenericEvent
}

// NewMacPoolReconciler creates a new MacPoolReconciler.
func NewMacPoolReconciler(
	c client.Client,
	scheme *runtime.Scheme,
	recorder *events.Recorder,
	cfg *config.Config,
) *MacPoolReconciler {
	return &MacPoolReconciler{
		client:   c,
		scheme:   scheme,
		recorder: recorder,
		config:   cfg,
		pools:    make(map[string]poolEntry),
		persist:  make(chan event.GenericEvent, persistQueueSize),
	}
}

// LoadDefaultPool builds the "default" pool from pool.defaultRanges.
// It does nothing when no default ranges are configured. A MacPool named
// "default" replaces it once reconciled, and it comes back when that
// MacPool goes away.
func (r *MacPoolReconciler) LoadDefaultPool() error {
	return r.loadDefaultPool(nil)
}

// loadDefaultPool builds the config default pool with carried allocated.
// An existing "default" entry is left alone.
func (r *MacPoolReconciler) loadDefaultPool(carried []string) error {
	ranges := r.config.DefaultPoolRanges()
	if len(ranges) == 0 {
		return nil
	}

	pool, err := allocator.NewMACPool(DefaultPoolName, ranges, nil, r.config.Pool.MaxAddresses)
	if err != nil {
		return fmt.Errorf("failed to build default MAC pool: %w", err)
	}
	carryAllocations(pool, carried)

	r.poolsMu.Lock()
	if _, exists := r.pools[DefaultPoolName]; exists {
		r.poolsMu.Unlock()
		return nil
	}
	r.pools[DefaultPoolName] = poolEntry{pool: pool, fromConfig: true}
	r.poolsMu.Unlock()

	metrics.UpdatePoolStats(DefaultPoolName, pool.Size(), pool.Available(), pool.Used())
	klog.Infof("Built default MAC pool with %d addresses from %d ranges", pool.Size(), len(ranges))
	return nil
}

// Reconcile handles the reconciliation of a MacPool resource.
func (r *MacPoolReconciler) Reconcile(ctx context.Context, req ctrl.Request) (result ctrl.Result, err error) {
	log := klog.FromContext(ctx).WithValues("macpool", req.Name)
	log.V(4).Info("Reconciling MacPool")

	timer := metrics.NewTimer()
	defer func() {
		outcome := metrics.ResultSuccess
		switch {
		case err != nil:
			outcome = metrics.ResultFailure
		case result.Requeue:
			outcome = metrics.ResultRequeue
		}
		metrics.RecordControllerReconcile(metrics.ControllerMacPool, outcome, timer.ObserveDuration())
	}()

	mp := &networkv1.MacPool{}
	if err := r.client.Get(ctx, req.NamespacedName, mp); err != nil {
		if client.IgnoreNotFound(err) != nil {
			log.Error(err, "Failed to get MacPool")
			return ctrl.Result{}, err
		}
		log.V(4).Info("MacPool not found, likely deleted")
		r.dropPool(req.Name)
		return ctrl.Result{}, nil
	}

	if !mp.DeletionTimestamp.IsZero() {
		return r.handleDeletion(ctx, mp)
	}

	if !controllerutil.ContainsFinalizer(mp, types.MacPoolFinalizer) {
		log.V(4).Info("Adding finalizer to MacPool")
		controllerutil.AddFinalizer(mp, types.MacPoolFinalizer)
		if err := r.client.Update(ctx, mp); err != nil {
			log.Error(err, "Failed to add finalizer")
			return ctrl.Result{}, err
		}
		return ctrl.Result{Requeue: true}, nil
	}

	result, err = r.reconcileMacPool(ctx, mp)
	if err != nil {
		log.Error(err, "Failed to reconcile MacPool")
		invalid := errors.Is(err, errInvalidSpec)
		if invalid {
			// Stop serving the old pool until the MacPool is fixed. Its
			// allocations stay in status for the rebuild.
			if carried, dropped := r.dropPool(mp.Name); dropped {
				mp.Status.AllocatedMACs = carried
			}
		}
		if statusErr := r.updateStatusFailed(ctx, mp, err); statusErr != nil {
			return ctrl.Result{}, statusErr
		}
		if invalid {
			return ctrl.Result{}, nil
		}
		return result, err
	}

	return result, nil
}

func (r *MacPoolReconciler) reconcileMacPool(ctx context.Context, mp *networkv1.MacPool) (ctrl.Result, error) {
	log := klog.FromContext(ctx).WithValues("macpool", mp.Name)

	ranges, err := r.validateMacPool(mp)
	if err != nil {
		log.Error(err, "MacPool validation failed")
		r.recorder.RangeValidationFailed(mp, err)
		return ctrl.Result{}, err
	}

	pool, err := r.ensurePool(mp, ranges)
	if err != nil {
		r.recorder.PoolBuildFailed(mp, err)
		return ctrl.Result{}, err
	}

	if err := r.updateStatusActive(ctx, mp, pool, ranges); err != nil {
		log.Error(err, "Failed to update MacPool status")
		return ctrl.Result{}, err
	}

	metrics.UpdatePoolStats(mp.Name, pool.Size(), pool.Available(), pool.Used())
	if pool.Available() == 0 {
		r.recorder.PoolExhausted(mp, mp.Name)
	}
	log.V(4).Info("MacPool reconciled", "size", pool.Size(), "available", pool.Available())

	return ctrl.Result{RequeueAfter: StatusResyncInterval}, nil
}

// validateMacPool parses every range. A malformed endpoint fails the pool;
// a range without unicast addresses only raises a warning event, unless no
// range has any.
func (r *MacPoolReconciler) validateMacPool(mp *networkv1.MacPool) ([]macrange.Range, error) {
	if len(mp.Spec.Ranges) == 0 {
		return nil, fmt.Errorf("%w: at least one range is required", errInvalidSpec)
	}

	ranges := make([]macrange.Range, 0, len(mp.Spec.Ranges))
	usable := 0
	for i, rc := range mp.Spec.Ranges {
		rng, err := macrange.ParseRange(rc.Start, rc.End)
		if err != nil {
			return nil, fmt.Errorf("%w: ranges[%d]: %v", errInvalidSpec, i, err)
		}
		if !macrange.IsValid(rc.Start, rc.End) {
			r.recorder.RangeEmpty(mp, rc.Start, rc.End)
			continue
		}
		usable++
		ranges = append(ranges, rng)
	}

	if usable == 0 {
		return nil, fmt.Errorf("%w: no range contains a unicast address", errInvalidSpec)
	}

	for i, mac := range mp.Spec.ExcludeMACs {
		if _, err := macrange.Parse(mac); err != nil {
			return nil, fmt.Errorf("%w: excludeMACs[%d]: %v", errInvalidSpec, i, err)
		}
	}

	return ranges, nil
}

// ensurePool returns the allocator for mp, rebuilding it when the MacPool
// generation changed. A rebuild retires the old allocator first, so that
// nothing can be allocated from it after its allocations are copied.
// Allocations that still fall inside the rebuilt pool are kept. A pool
// built for the first time takes its allocations from status.
func (r *MacPoolReconciler) ensurePool(mp *networkv1.MacPool, ranges []macrange.Range) (*allocator.MACPool, error) {
	r.poolsMu.Lock()
	defer r.poolsMu.Unlock()

	existing, exists := r.pools[mp.Name]
	if exists && !existing.fromConfig && existing.generation == mp.Generation {
		return existing.pool, nil
	}

	maxAddresses := mp.EffectiveMaxAddresses(r.config.Pool.MaxAddresses)
	pool, err := allocator.NewMACPool(mp.Name, ranges, mp.Spec.ExcludeMACs, maxAddresses)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidSpec, err)
	}

	// The in-memory pool is newer than status, except for the config
	// default pool, which never wrote to this MacPool.
	var carried []string
	if !exists || existing.fromConfig {
		carried = append(carried, mp.Status.AllocatedMACs...)
	}
	if exists {
		carried = append(carried, existing.pool.Retire()...)
	}
	carryAllocations(pool, carried)

	r.pools[mp.Name] = poolEntry{pool: pool, generation: mp.Generation}
	klog.V(4).Infof("Built MAC pool %s: %d addresses, %d available", mp.Name, pool.Size(), pool.Available())
	r.recorder.PoolReady(mp, pool.Size())

	return pool, nil
}

func (r *MacPoolReconciler) handleDeletion(ctx context.Context, mp *networkv1.MacPool) (ctrl.Result, error) {
	log := klog.FromContext(ctx).WithValues("macpool", mp.Name)
	log.Info("Handling MacPool deletion")

	r.dropPool(mp.Name)
	r.recorder.PoolDeleted(mp, mp.Name)

	if controllerutil.ContainsFinalizer(mp, types.MacPoolFinalizer) {
		log.V(4).Info("Removing finalizer from MacPool")
		controllerutil.RemoveFinalizer(mp, types.MacPoolFinalizer)
		if err := r.client.Update(ctx, mp); err != nil {
			log.Error(err, "Failed to remove finalizer")
			return ctrl.Result{}, err
		}
	}

	log.Info("MacPool deletion completed")
	return ctrl.Result{}, nil
}

// carryAllocations allocates macs in pool. MACs the pool does not hold are
// dropped with a warning; duplicates are ignored.
func carryAllocations(pool *allocator.MACPool, macs []string) {
	dropped := 0
	for _, mac := range macs {
		err := pool.Allocate(mac)
		var allocated *allocator.MACAlreadyAllocatedError
		if err == nil || errors.As(err, &allocated) {
			continue
		}
		dropped++
		klog.V(2).Infof("MAC %s not carried over to pool %s: %v", mac, pool.Name(), err)
	}
	if dropped > 0 {
		klog.Warningf("MAC pool %s dropped %d allocations", pool.Name(), dropped)
	}
}

// dropPool stops serving the pool of a MacPool and returns its final
// allocations. The config default pool is kept, and dropping a MacPool
// named "default" brings it back with the dropped pool's allocations.
func (r *MacPoolReconciler) dropPool(name string) ([]string, bool) {
	r.poolsMu.Lock()
	entry, existed := r.pools[name]
	if !existed || entry.fromConfig {
		r.poolsMu.Unlock()
		return nil, false
	}
	delete(r.pools, name)
	r.poolsMu.Unlock()

	carried := entry.pool.Retire()
	metrics.DeletePoolMetrics(name)

	if name == DefaultPoolName {
		if err := r.loadDefaultPool(carried); err != nil {
			klog.Errorf("Failed to restore default MAC pool: %v", err)
		}
	}
	return carried, true
}

func (r *MacPoolReconciler) updateStatusActive(ctx context.Context, mp *networkv1.MacPool, pool *allocator.MACPool, ranges []macrange.Range) error {
	now := metav1.Now()
	mp.Status.Phase = networkv1.MacPoolPhaseActive
	mp.Status.Reason = ""
	mp.Status.Message = "MAC pool is ready for use"
	mp.Status.TotalMACs = pool.Size()
	mp.Status.AvailableMACs = pool.Available()
	mp.Status.UsedMACs = pool.Used()
	mp.Status.UsableInRanges = usableInRanges(ranges)
	mp.Status.Preview = pool.Preview(r.config.Pool.PreviewLimit)
	mp.Status.AllocatedMACs = pool.Allocated()
	mp.Status.LastUpdateTime = &now

	mp.Status.Conditions = updateCondition(mp.Status.Conditions, metav1.Condition{
		Type:               networkv1.MacPoolConditionRangesValid,
		Status:             metav1.ConditionTrue,
		Reason:             "RangesValid",
		Message:            fmt.Sprintf("%d of %d ranges contain unicast addresses", len(ranges), len(mp.Spec.Ranges)),
		LastTransitionTime: now,
	})
	mp.Status.Conditions = updateCondition(mp.Status.Conditions, metav1.Condition{
		Type:               networkv1.MacPoolConditionPoolReady,
		Status:             metav1.ConditionTrue,
		Reason:             "PoolReady",
		Message:            fmt.Sprintf("MAC pool initialized with %d available addresses", pool.Available()),
		LastTransitionTime: now,
	})
	mp.Status.Conditions = updateCondition(mp.Status.Conditions, metav1.Condition{
		Type:               networkv1.MacPoolConditionReady,
		Status:             metav1.ConditionTrue,
		Reason:             "MacPoolReady",
		Message:            "MAC pool is ready for use",
		LastTransitionTime: now,
	})

	return r.client.Status().Update(ctx, mp)
}

func (r *MacPoolReconciler) updateStatusFailed(ctx context.Context, mp *networkv1.MacPool, cause error) error {
	now := metav1.Now()
	mp.Status.Phase = networkv1.MacPoolPhaseFailed
	mp.Status.Reason = "ReconcileFailed"
	mp.Status.Message = fmt.Sprintf("MAC pool configuration failed: %v", cause)
	mp.Status.LastUpdateTime = &now

	if errors.Is(cause, errInvalidSpec) {
		mp.Status.Reason = "InvalidSpec"
		mp.Status.Conditions = updateCondition(mp.Status.Conditions, metav1.Condition{
			Type:               networkv1.MacPoolConditionRangesValid,
			Status:             metav1.ConditionFalse,
			Reason:             "InvalidSpec",
			Message:            cause.Error(),
			LastTransitionTime: now,
		})
	}
	mp.Status.Conditions = updateCondition(mp.Status.Conditions, metav1.Condition{
		Type:               networkv1.MacPoolConditionReady,
		Status:             metav1.ConditionFalse,
		Reason:             "MacPoolFailed",
		Message:            cause.Error(),
		LastTransitionTime: now,
	})

	if err := r.client.Status().Update(ctx, mp); err != nil {
		klog.Errorf("Failed to update MacPool %s status to Failed: %v", mp.Name, err)
		return err
	}

	return nil
}

// GetAllocator returns the MAC allocator for a pool, or nil if the pool is
// unknown or not yet built.
func (r *MacPoolReconciler) GetAllocator(name string) *allocator.MACPool {
	r.poolsMu.RLock()
	defer r.poolsMu.RUnlock()
	return r.pools[name].pool
}

// poolRef is the object events about a pool are attached to.
func poolRef(name string) *networkv1.MacPool {
	return &networkv1.MacPool{ObjectMeta: metav1.ObjectMeta{Name: name}}
}

// MACAllocated records an allocation made through the pool service.
func (r *MacPoolReconciler) MACAllocated(pool, mac string) {
	r.recorder.MACAllocated(poolRef(pool), mac, pool)
	r.requestPersist(pool)
}

// MACAllocationFailed records a failed allocation made through the pool service.
func (r *MacPoolReconciler) MACAllocationFailed(pool string, err error) {
	var exhausted *allocator.PoolExhaustedError
	if errors.As(err, &exhausted) {
		r.recorder.PoolExhausted(poolRef(pool), pool)
		return
	}
	r.recorder.MACAllocationFailed(poolRef(pool), pool, err)
}

// MACReleased records a release made through the pool service.
func (r *MacPoolReconciler) MACReleased(pool, mac string) {
	r.recorder.MACReleased(poolRef(pool), mac, pool)
	r.requestPersist(pool)
}

// requestPersist queues a reconcile of pool so that its status records the
// current allocations. Pools without a MacPool object are skipped.
func (r *MacPoolReconciler) requestPersist(pool string) {
	r.poolsMu.RLock()
	entry, exists := r.pools[pool]
	r.poolsMu.RUnlock()
	if !exists || entry.fromConfig {
		return
	}

	select {
	case r.persist <- event.GenericEvent{Object: poolRef(pool)}:
	default:
		klog.V(4).Infof("Persist queue full, MacPool %s waits for resync", pool)
	}
}

// MACReleaseFailed records a failed release made through the pool service.
func (r *MacPoolReconciler) MACReleaseFailed(pool, mac string, err error) {
	r.recorder.MACReleaseFailed(poolRef(pool), mac, err)
}

// SetupWithManager sets up the controller with the Manager.
func (r *MacPoolReconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&networkv1.MacPool{}, builder.WithPredicates(predicate.GenerationChangedPredicate{})).
		WatchesRawSource(&source.Channel{Source: r.persist}, &handler.EnqueueRequestForObject{}).
		Named(ControllerName).
		Complete(r)
}

// usableInRanges sums the unicast counts of ranges, saturating at MaxInt64.
// Overlapping ranges are counted once per range.
func usableInRanges(ranges []macrange.Range) int64 {
	var total uint64
	for _, rng := range ranges {
		total += rng.UsableCount()
		if total > math.MaxInt64 {
			return math.MaxInt64
		}
	}
	return int64(total)
}

// updateCondition updates or adds a condition to the conditions slice.
func updateCondition(conditions []metav1.Condition, newCondition metav1.Condition) []metav1.Condition {
	for i, c := range conditions {
		if c.Type == newCondition.Type {
			if c.Status == newCondition.Status {
				newCondition.LastTransitionTime = c.LastTransitionTime
			}
			conditions[i] = newCondition
			return conditions
		}
	}
	return append(conditions, newCondition)
}
