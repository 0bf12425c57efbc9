package server

// GenerateRequest is the payload of POST /macrange/generate.
type GenerateRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`

	// Limit caps the number of addresses returned. When omitted the
	// server's maximum applies. A limit of 0 still yields one address.
	Limit *int `json:"limit,omitempty"`
}

// GenerateResponse lists the generated addresses in ascending order.
type GenerateResponse struct {
	MACs []string `json:"macs"`
}

// ValidateRequest is the payload of POST /macrange/validate.
type ValidateRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// ValidateResponse reports whether the range has at least one unicast
// address, and how many it has in total.
type ValidateResponse struct {
	Valid  bool   `json:"valid"`
	Usable uint64 `json:"usable"`
}

// FormatRequest is the payload of POST /macrange/format.
type FormatRequest struct {
	Value uint64 `json:"value"`
}

// FormatResponse carries the canonical form of a numeric address.
type FormatResponse struct {
	MAC string `json:"mac"`
}

// AllocateRequest is the payload of POST /pool/allocate.
// An empty MAC asks for the lowest free address.
type AllocateRequest struct {
	Pool string `json:"pool,omitempty"`
	MAC  string `json:"mac,omitempty"`
}

// AllocateResponse carries the allocated address in canonical form.
type AllocateResponse struct {
	MAC string `json:"mac"`
}

// ReleaseRequest is the payload of POST /pool/release.
type ReleaseRequest struct {
	Pool string `json:"pool,omitempty"`
	MAC  string `json:"mac"`
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
