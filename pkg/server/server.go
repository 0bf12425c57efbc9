// Package server provides the MAC pool service.
//
// The service listens on a Unix Socket and answers JSON requests from the
// macrange CLI and other node-local callers. It exposes the MAC range
// operations (generate, validate, format) and allocation from the pools
// built by the MacPool controller.
//
// Architecture:
//
//	┌─────────────────┐     Unix Socket      ┌─────────────────────┐
//	│  macrange CLI   │ ──────────────────▶  │    Pool Service     │
//	│  (server.Client)│                      │ (in macpool-ctrl)   │
//	└─────────────────┘                      └─────────────────────┘
//	                                                   │
//	                                                   │ GetAllocator
//	                                                   ▼
//	                                         ┌─────────────────────┐
//	                                         │  MacPoolReconciler  │
//	                                         └─────────────────────┘
//
// Endpoints:
// - POST /macrange/generate - enumerate unicast addresses of a range
// - POST /macrange/validate - report whether a range has a unicast address
// - POST /macrange/format   - render a numeric address
// - POST /pool/allocate     - allocate a specific or the next free address
// - POST /pool/release      - release an address
// - GET  /healthz           - liveness
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jiayi-1994/zstack-macpool/pkg/allocator"
	"github.com/jiayi-1994/zstack-macpool/pkg/config"
	"github.com/jiayi-1994/zstack-macpool/pkg/logging"
	"github.com/jiayi-1994/zstack-macpool/pkg/macrange"
	"github.com/jiayi-1994/zstack-macpool/pkg/metrics"
	"github.com/jiayi-1994/zstack-macpool/pkg/types"
)

// shutdownTimeout bounds graceful shutdown in Stop.
const shutdownTimeout = 5 * time.Second

// retiredPoolRetries bounds lookups repeated because a pool was rebuilt
// between lookup and use.
const retiredPoolRetries = 3

// PoolProvider resolves pool names to allocators.
// It is implemented by macpool.MacPoolReconciler.
type PoolProvider interface {
	// GetAllocator returns nil when the pool is unknown.
	GetAllocator(name string) *allocator.MACPool
}

// AllocationObserver is notified of allocations made through the service.
// A PoolProvider that also implements it receives the notifications.
type AllocationObserver interface {
	MACAllocated(pool, mac string)
	MACAllocationFailed(pool string, err error)
	MACReleased(pool, mac string)
	MACReleaseFailed(pool, mac string, err error)
}

// handlerFunc handles the decoded body of one endpoint.
type handlerFunc func(body []byte) (interface{}, error)

// Server is the MAC pool service that handles requests via Unix Socket
type Server struct {
	// socketPath is the Unix Socket path
	socketPath string

	// requestTimeout bounds reading a request and writing its response
	requestTimeout time.Duration

	// maxBodySize is the largest accepted request body
	maxBodySize int64

	// maxGenerate caps the size of a generate response
	maxGenerate int

	// pools resolves allocation requests
	pools PoolProvider

	// observer is pools as an AllocationObserver, if it is one
	observer AllocationObserver

	// listener is the Unix Socket listener
	listener net.Listener

	// httpServer is the HTTP server for handling requests
	httpServer *http.Server

	log *logging.Logger

	// mu protects server state
	mu sync.Mutex

	// running indicates if the server is running
	running bool
}

// NewServer creates a new pool service.
//
// Parameters:
//   - cfg: Configuration; the server and pool sections are used
//   - pools: Allocator lookup for /pool endpoints
//
// Returns:
//   - *Server: Server instance
func NewServer(cfg *config.Config, pools PoolProvider) *Server {
	socketPath := cfg.Server.SocketPath
	if socketPath == "" {
		socketPath = types.DefaultSocketPath
	}
	timeout := cfg.Server.RequestTimeout
	if timeout <= 0 {
		timeout = types.DefaultRequestTimeoutSec * time.Second
	}
	maxBody := cfg.Server.MaxRequestBodySize
	if maxBody <= 0 {
		maxBody = types.DefaultMaxRequestBodyBytes
	}
	maxGenerate := cfg.Pool.MaxAddresses
	if maxGenerate <= 0 {
		maxGenerate = types.DefaultMaxAddresses
	}

	observer, _ := pools.(AllocationObserver)

	return &Server{
		socketPath:     socketPath,
		requestTimeout: timeout,
		maxBodySize:    maxBody,
		maxGenerate:    maxGenerate,
		pools:          pools,
		observer:       observer,
		log:            logging.LoggerForServer(socketPath),
	}
}

// SocketPath returns the Unix Socket path the server listens on.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// Start starts the pool service
//
// The server:
// 1. Creates the socket directory if it doesn't exist
// 2. Removes any existing socket file
// 3. Creates a Unix Socket listener
// 4. Starts an HTTP server to handle requests
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("pool server is already running")
	}

	socketDir := filepath.Dir(s.socketPath)
	if err := os.MkdirAll(socketDir, 0755); err != nil {
		return fmt.Errorf("failed to create socket directory %s: %w", socketDir, err)
	}

	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove existing socket %s: %w", s.socketPath, err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.socketPath, err)
	}
	s.listener = listener

	if err := os.Chmod(s.socketPath, 0660); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.requestTimeout,
		WriteTimeout: s.requestTimeout,
	}

	s.running = true

	go func() {
		s.log.Info("Pool server started", "socket", s.socketPath)
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error(err, "Pool server error")
		}
	}()

	return nil
}

// Stop stops the pool service gracefully
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.log.Error(err, "Error shutting down pool server")
	}

	if s.listener != nil {
		s.listener.Close()
	}

	os.Remove(s.socketPath)

	s.running = false
	s.log.Info("Pool server stopped")
	return nil
}

// Run starts the server, blocks until ctx is done, then stops it.
// It satisfies the controller-runtime manager Runnable contract.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Stop()
}

// Handler returns the HTTP handler serving all endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(types.PathGenerate, s.endpoint(types.PathGenerate, s.handleGenerate))
	mux.HandleFunc(types.PathValidate, s.endpoint(types.PathValidate, s.handleValidate))
	mux.HandleFunc(types.PathFormat, s.endpoint(types.PathFormat, s.handleFormat))
	mux.HandleFunc(types.PathAllocate, s.endpoint(types.PathAllocate, s.handleAllocate))
	mux.HandleFunc(types.PathRelease, s.endpoint(types.PathRelease, s.handleRelease))
	mux.HandleFunc(types.PathHealth, s.handleHealth)
	return mux
}

// endpoint wraps a POST handler with body limits, error mapping and metrics.
func (s *Server) endpoint(path string, fn handlerFunc) http.HandlerFunc {
	log := logging.LoggerForServer(path)

	return func(w http.ResponseWriter, r *http.Request) {
		metrics.IncrementServerRequestsInFlight()
		defer metrics.DecrementServerRequestsInFlight()

		timer := metrics.NewTimer()
		code := http.StatusOK
		defer func() {
			metrics.RecordServerRequest(path, code, timer.ObserveDuration())
		}()

		if r.Method != http.MethodPost {
			code = http.StatusMethodNotAllowed
			s.sendError(w, code, "method not allowed")
			return
		}

		body, err := s.readBody(r)
		if err != nil {
			code = http.StatusBadRequest
			s.sendError(w, code, err.Error())
			return
		}

		resp, err := fn(body)
		if err != nil {
			code = statusCode(err)
			if code == http.StatusInternalServerError {
				log.Error(err, "Request failed")
			} else {
				log.Debug("Request rejected", "code", code, "error", err.Error())
			}
			s.sendError(w, code, err.Error())
			return
		}

		s.sendResponse(w, resp)
	}
}

func (s *Server) handleGenerate(body []byte) (interface{}, error) {
	var req GenerateRequest
	if err := decode(body, &req); err != nil {
		return nil, err
	}

	// The response never exceeds maxGenerate addresses.
	limit := macrange.LimitForCount(s.maxGenerate)
	if req.Limit != nil && *req.Limit < limit {
		limit = *req.Limit
	}

	timer := metrics.NewTimer()
	macs, err := macrange.Generate(req.Start, req.End, limit)
	metrics.RecordGenerate(err, len(macs), timer.ObserveDuration())
	if err != nil {
		return nil, err
	}

	if macs == nil {
		macs = []string{}
	}
	return &GenerateResponse{MACs: macs}, nil
}

func (s *Server) handleValidate(body []byte) (interface{}, error) {
	var req ValidateRequest
	if err := decode(body, &req); err != nil {
		return nil, err
	}

	resp := &ValidateResponse{Valid: macrange.IsValid(req.Start, req.End)}
	if r, err := macrange.ParseRange(req.Start, req.End); err == nil {
		resp.Usable = r.UsableCount()
	}
	metrics.RecordValidation(resp.Valid)

	return resp, nil
}

func (s *Server) handleFormat(body []byte) (interface{}, error) {
	var req FormatRequest
	if err := decode(body, &req); err != nil {
		return nil, err
	}

	if req.Value > macrange.MaxAddress {
		return nil, fmt.Errorf("%w: value %#x exceeds 48 bits", errBadRequest, req.Value)
	}

	return &FormatResponse{MAC: macrange.Format(req.Value)}, nil
}

func (s *Server) handleAllocate(body []byte) (interface{}, error) {
	var req AllocateRequest
	if err := decode(body, &req); err != nil {
		return nil, err
	}

	var mac string
	timer := metrics.NewTimer()
	pool, err := s.withPool(req.Pool, func(pool *allocator.MACPool) (err error) {
		mac, err = allocate(pool, req.MAC)
		return err
	})
	if pool == nil {
		return nil, err
	}
	metrics.RecordAllocation(pool.Name(), metrics.OperationAllocate, err, timer.ObserveDuration())
	if err != nil {
		if s.observer != nil {
			s.observer.MACAllocationFailed(pool.Name(), err)
		}
		return nil, err
	}
	metrics.UpdatePoolStats(pool.Name(), pool.Size(), pool.Available(), pool.Used())
	if s.observer != nil {
		s.observer.MACAllocated(pool.Name(), mac)
	}

	logging.LoggerForPool(pool.Name()).Debug("MAC allocated", "mac", mac)
	return &AllocateResponse{MAC: mac}, nil
}

func (s *Server) handleRelease(body []byte) (interface{}, error) {
	var req ReleaseRequest
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	if req.MAC == "" {
		return nil, fmt.Errorf("%w: mac is required", errBadRequest)
	}

	timer := metrics.NewTimer()
	pool, err := s.withPool(req.Pool, func(pool *allocator.MACPool) error {
		return pool.Release(req.MAC)
	})
	if pool == nil {
		return nil, err
	}
	metrics.RecordAllocation(pool.Name(), metrics.OperationRelease, err, timer.ObserveDuration())
	if err != nil {
		if s.observer != nil {
			s.observer.MACReleaseFailed(pool.Name(), req.MAC, err)
		}
		return nil, err
	}
	metrics.UpdatePoolStats(pool.Name(), pool.Size(), pool.Available(), pool.Used())
	if s.observer != nil {
		s.observer.MACReleased(pool.Name(), req.MAC)
	}

	logging.LoggerForPool(pool.Name()).Debug("MAC released", "mac", req.MAC)
	return struct{}{}, nil
}

// handleHealth handles GET /healthz requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.sendResponse(w, &HealthResponse{Status: "ok"})
}

// lookupPool resolves a pool name; an empty name selects the default pool.
func (s *Server) lookupPool(name string) (*allocator.MACPool, error) {
	if name == "" {
		name = types.DefaultPoolName
	}
	if s.pools == nil {
		return nil, &PoolNotFoundError{Pool: name}
	}
	pool := s.pools.GetAllocator(name)
	if pool == nil {
		return nil, &PoolNotFoundError{Pool: name}
	}
	return pool, nil
}

// withPool runs fn against the named pool. When the pool was retired by a
// rebuild after the lookup, it is looked up again. The returned pool is nil
// only when the lookup itself failed.
func (s *Server) withPool(name string, fn func(pool *allocator.MACPool) error) (*allocator.MACPool, error) {
	for attempt := 0; ; attempt++ {
		pool, err := s.lookupPool(name)
		if err != nil {
			return nil, err
		}

		err = fn(pool)
		var retired *allocator.PoolRetiredError
		if errors.As(err, &retired) && attempt < retiredPoolRetries {
			logging.LoggerForPool(pool.Name()).Debug("Pool was rebuilt, retrying", "attempt", attempt+1)
			continue
		}
		return pool, err
	}
}

// allocate takes mac from pool, or the next free address when mac is empty.
func allocate(pool *allocator.MACPool, mac string) (string, error) {
	if mac == "" {
		return pool.AllocateNext()
	}

	addr, err := macrange.Parse(mac)
	if err != nil {
		return "", err
	}
	canonical := macrange.Format(addr)
	if err := pool.Allocate(canonical); err != nil {
		return "", err
	}
	return canonical, nil
}

// readBody reads the request body, rejecting bodies over the size limit.
func (s *Server) readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, s.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	if int64(len(body)) > s.maxBodySize {
		return nil, fmt.Errorf("request body exceeds %d bytes", s.maxBodySize)
	}
	return body, nil
}

// decode unmarshals a JSON body, rejecting unknown fields.
func decode(body []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: failed to unmarshal request: %v", errBadRequest, err)
	}
	return nil
}

// sendResponse sends a successful response
func (s *Server) sendResponse(w http.ResponseWriter, resp interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// sendError sends an error response
func (s *Server) sendError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(&ErrorResponse{Error: message})
}
