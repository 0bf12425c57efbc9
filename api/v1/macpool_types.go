package v1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

// MacPoolPhase represents the current phase of a MacPool
type MacPoolPhase string

const (
	MacPoolPhasePending MacPoolPhase = "Pending"
	MacPoolPhaseActive  MacPoolPhase = "Active"
	MacPoolPhaseFailed  MacPoolPhase = "Failed"
)

// MacRange is an inclusive range of MAC addresses.
// Both ends accept hex digits with optional ':' separators in any case.
type MacRange struct {
	// Start is the first MAC address of the range.
	// +kubebuilder:validation:Required
	Start string `json:"start"`

	// End is the last MAC address of the range.
	// +kubebuilder:validation:Required
	End string `json:"end"`
}

// MacPoolSpec defines the desired state of MacPool.
type MacPoolSpec struct {
	// Ranges are the MAC ranges the pool draws addresses from.
	// Multicast addresses inside a range are never assigned.
	// +kubebuilder:validation:Required
	// +kubebuilder:validation:MinItems=1
	Ranges []MacRange `json:"ranges"`

	// ExcludeMACs is a list of MACs that must never be assigned.
	// +optional
	ExcludeMACs []string `json:"excludeMACs,omitempty"`

	// MaxAddresses bounds the number of addresses taken from Ranges.
	// Zero means the controller default.
	// +optional
	// +kubebuilder:validation:Minimum=0
	MaxAddresses int `json:"maxAddresses,omitempty"`
}

// MacPoolStatus defines the observed state of MacPool.
type MacPoolStatus struct {
	// Phase is the current phase of the pool.
	// +kubebuilder:validation:Enum=Pending;Active;Failed
	Phase MacPoolPhase `json:"phase,omitempty"`

	// Reason provides additional information about the current phase.
	Reason string `json:"reason,omitempty"`

	// Message provides a human-readable description of the current state.
	Message string `json:"message,omitempty"`

	// TotalMACs is the number of addresses in the pool.
	TotalMACs int `json:"totalMACs,omitempty"`

	// AvailableMACs is the number of addresses that can still be assigned.
	AvailableMACs int `json:"availableMACs,omitempty"`

	// UsedMACs is the number of assigned or excluded addresses.
	UsedMACs int `json:"usedMACs,omitempty"`

	// UsableInRanges is the number of unicast addresses across all ranges,
	// before MaxAddresses is applied.
	UsableInRanges int64 `json:"usableInRanges,omitempty"`

	// Preview lists the first addresses of the pool.
	// +optional
	Preview []string `json:"preview,omitempty"`

	// AllocatedMACs records the addresses handed out from the pool, in
	// ascending order. A controller that starts without the pool in memory
	// rebuilds it with these addresses allocated.
	// +optional
	AllocatedMACs []string `json:"allocatedMACs,omitempty"`

	// Conditions represent the latest available observations of the pool's state.
	// +optional
	Conditions []metav1.Condition `json:"conditions,omitempty"`

	// LastUpdateTime is the timestamp of the last status update.
	// +optional
	LastUpdateTime *metav1.Time `json:"lastUpdateTime,omitempty"`
}

// MacPool condition types
const (
	MacPoolConditionReady       = "Ready"
	MacPoolConditionRangesValid = "RangesValid"
	MacPoolConditionPoolReady   = "PoolReady"
)

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:scope=Cluster,shortName=mp
// +kubebuilder:printcolumn:name="Phase",type=string,JSONPath=`.status.phase`
// +kubebuilder:printcolumn:name="Total",type=integer,JSONPath=`.status.totalMACs`
// +kubebuilder:printcolumn:name="Available",type=integer,JSONPath=`.status.availableMACs`
// +kubebuilder:printcolumn:name="Used",type=integer,JSONPath=`.status.usedMACs`
// +kubebuilder:printcolumn:name="Age",type=date,JSONPath=`.metadata.creationTimestamp`

// MacPool is the Schema for the macpools API.
type MacPool struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   MacPoolSpec   `json:"spec,omitempty"`
	Status MacPoolStatus `json:"status,omitempty"`
}

// EffectiveMaxAddresses returns Spec.MaxAddresses, or def when it is unset.
func (p *MacPool) EffectiveMaxAddresses(def int) int {
	if p.Spec.MaxAddresses > 0 {
		return p.Spec.MaxAddresses
	}
	return def
}

// +kubebuilder:object:root=true

// MacPoolList contains a list of MacPool
type MacPoolList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []MacPool `json:"items"`
}

// DeepCopyInto copies the receiver into the given *MacPool.
func (in *MacPool) DeepCopyInto(out *MacPool) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ObjectMeta.DeepCopyInto(&out.ObjectMeta)
	in.Spec.DeepCopyInto(&out.Spec)
	in.Status.DeepCopyInto(&out.Status)
}

// DeepCopy creates a deep copy of the MacPool.
func (in *MacPool) DeepCopy() *MacPool {
	if in == nil {
		return nil
	}
	out := new(MacPool)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyObject returns a deep copy as runtime.Object.
func (in *MacPool) DeepCopyObject() runtime.Object {
	if c := in.DeepCopy(); c != nil {
		return c
	}
	return nil
}

// DeepCopyInto copies the receiver into the given *MacPoolSpec.
func (in *MacPoolSpec) DeepCopyInto(out *MacPoolSpec) {
	*out = *in
	if in.Ranges != nil {
		in, out := &in.Ranges, &out.Ranges
		*out = make([]MacRange, len(*in))
		copy(*out, *in)
	}
	if in.ExcludeMACs != nil {
		in, out := &in.ExcludeMACs, &out.ExcludeMACs
		*out = make([]string, len(*in))
		copy(*out, *in)
	}
}

// DeepCopy creates a deep copy of the MacPoolSpec.
func (in *MacPoolSpec) DeepCopy() *MacPoolSpec {
	if in == nil {
		return nil
	}
	out := new(MacPoolSpec)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyInto copies the receiver into the given *MacPoolStatus.
func (in *MacPoolStatus) DeepCopyInto(out *MacPoolStatus) {
	*out = *in
	if in.Preview != nil {
		in, out := &in.Preview, &out.Preview
		*out = make([]string, len(*in))
		copy(*out, *in)
	}
	if in.AllocatedMACs != nil {
		in, out := &in.AllocatedMACs, &out.AllocatedMACs
		*out = make([]string, len(*in))
		copy(*out, *in)
	}
	if in.Conditions != nil {
		in, out := &in.Conditions, &out.Conditions
		*out = make([]metav1.Condition, len(*in))
		for i := range *in {
			(*in)[i].DeepCopyInto(&(*out)[i])
		}
	}
	if in.LastUpdateTime != nil {
		in, out := &in.LastUpdateTime, &out.LastUpdateTime
		*out = (*in).DeepCopy()
	}
}

// DeepCopy creates a deep copy of the MacPoolStatus.
func (in *MacPoolStatus) DeepCopy() *MacPoolStatus {
	if in == nil {
		return nil
	}
	out := new(MacPoolStatus)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyInto copies the receiver into the given *MacPoolList.
func (in *MacPoolList) DeepCopyInto(out *MacPoolList) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ListMeta.DeepCopyInto(&out.ListMeta)
	if in.Items != nil {
		in, out := &in.Items, &out.Items
		*out = make([]MacPool, len(*in))
		for i := range *in {
			(*in)[i].DeepCopyInto(&(*out)[i])
		}
	}
}

// DeepCopy creates a deep copy of the MacPoolList.
func (in *MacPoolList) DeepCopy() *MacPoolList {
	if in == nil {
		return nil
	}
	out := new(MacPoolList)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyObject returns a deep copy as runtime.Object.
func (in *MacPoolList) DeepCopyObject() runtime.Object {
	if c := in.DeepCopy(); c != nil {
		return c
	}
	return nil
}
