// Package allocator provides MAC address pool allocation.
package allocator

import "fmt"

// PoolExhaustedError indicates that a pool has no free MAC addresses.
type PoolExhaustedError struct {
	Pool string
}

func (e *PoolExhaustedError) Error() string {
	return fmt.Sprintf("MAC pool %s has no available addresses", e.Pool)
}

// MACAlreadyAllocatedError indicates that a MAC address is already in use.
type MACAlreadyAllocatedError struct {
	MAC string
}

func (e *MACAlreadyAllocatedError) Error() string {
	return fmt.Sprintf("MAC %s is already allocated", e.MAC)
}

// MACOutOfRangeError indicates that a MAC address is not part of the pool.
type MACOutOfRangeError struct {
	MAC  string
	Pool string
}

func (e *MACOutOfRangeError) Error() string {
	return fmt.Sprintf("MAC %s is not in pool %s", e.MAC, e.Pool)
}

// MACExcludedError indicates an attempt to release a reserved MAC address.
type MACExcludedError struct {
	MAC string
}

func (e *MACExcludedError) Error() string {
	return fmt.Sprintf("cannot release excluded MAC %s", e.MAC)
}

// PoolRetiredError indicates that a pool was replaced and no longer accepts
// changes. Callers should look the pool up again.
type PoolRetiredError struct {
	Pool string
}

func (e *PoolRetiredError) Error() string {
	return fmt.Sprintf("MAC pool %s has been replaced", e.Pool)
}
