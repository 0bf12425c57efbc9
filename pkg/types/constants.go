// Package types provides type definitions and constants.
//
// This package contains:
// - Default paths and limits
// - Environment variable names
// - Service endpoint paths
package types

const (
	// Component names
	ControllerName = "macpool-controller"
	CLIName        = "macrange"

	// Environment variables
	EnvConfigFile = "MACPOOL_CONFIG_FILE"
	EnvPrefix     = "MACPOOL_"

	// Service defaults
	DefaultSocketPath          = "/var/run/zstack-macpool/macpool.sock"
	DefaultRequestTimeoutSec   = 30
	DefaultMaxRequestBodyBytes = 1 << 20

	// Pool defaults
	DefaultMaxAddresses = 65536
	DefaultPreviewLimit = 16
	DefaultPoolName     = "default"

	// Client retry defaults
	DefaultClientMaxRetries      = 3
	DefaultClientInitialInterval = 100 // milliseconds

	// Service endpoints
	PathGenerate = "/macrange/generate"
	PathValidate = "/macrange/validate"
	PathFormat   = "/macrange/format"
	PathAllocate = "/pool/allocate"
	PathRelease  = "/pool/release"
	PathHealth   = "/healthz"

	// Leader election
	LeaderElectionID = "zstack-macpool-controller-leader"

	// MacPoolFinalizer is the finalizer added to MacPool resources
	MacPoolFinalizer = "macpool.network.zstack.io/finalizer"
)
