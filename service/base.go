// Package service provides the base lifecycle for long-running forkfolio
// services plus the HTTP recipe service itself. The base handles health
// monitoring, start/stop transitions, and metric reporting.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/virajxp1/forkfolio/health"
	"github.com/virajxp1/forkfolio/metric"
	"github.com/virajxp1/forkfolio/natsclient"
)

// Status represents the current status of a service
type Status int

// Possible service statuses
const (
	StatusStopped Status = iota
	StatusStarting
	StatusRunning
	StatusStopping
)

// String returns the string representation of Status
func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusStarting:
		return "starting"
	case StatusRunning:
		return "running"
	case StatusStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Info holds runtime information for a service
type Info struct {
	Name               string        `json:"name"`
	Status             Status        `json:"status"`
	Uptime             time.Duration `json:"uptime"`
	StartTime          time.Time     `json:"start_time"`
	HealthChecks       int64         `json:"health_checks"`
	FailedHealthChecks int64         `json:"failed_health_checks"`
}

// HealthCheckFunc defines a custom health check function
type HealthCheckFunc func() error

// Option is a functional option for configuring BaseService
type Option func(*BaseService)

// BaseService provides common lifecycle functionality for services.
type BaseService struct {
	name            string
	nats            *natsclient.Client
	metricsRegistry *metric.Registry
	logger          *slog.Logger

	status    atomic.Value // Status
	startTime atomic.Value // time.Time
	healthy   atomic.Bool

	healthChecks       atomic.Int64
	failedHealthChecks atomic.Int64

	healthCheckFunc HealthCheckFunc
	healthTicker    *time.Ticker
	healthInterval  time.Duration

	onHealthChange func(bool)

	done      chan struct{}
	waitGroup sync.WaitGroup
	mu        sync.RWMutex
}

// NewBaseService creates a base service using functional options.
func NewBaseService(name string, opts ...Option) *BaseService {
	service := &BaseService{
		name:           name,
		healthInterval: 30 * time.Second,
		logger:         slog.Default().With("service", name),
	}

	for _, opt := range opts {
		opt(service)
	}

	service.status.Store(StatusStopped)
	if service.metricsRegistry != nil {
		service.metricsRegistry.CoreMetrics().RecordServiceStatus(name, int(StatusStopped))
	}
	service.startTime.Store(time.Time{})

	return service
}

// WithNATS sets the NATS client for the service
func WithNATS(client *natsclient.Client) Option {
	return func(s *BaseService) {
		s.nats = client
	}
}

// WithMetrics sets the metrics registry for the service
func WithMetrics(registry *metric.Registry) Option {
	return func(s *BaseService) {
		s.metricsRegistry = registry
	}
}

// WithLogger sets a custom logger for the service
func WithLogger(logger *slog.Logger) Option {
	return func(s *BaseService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithHealthCheck sets a custom health check function
func WithHealthCheck(fn HealthCheckFunc) Option {
	return func(s *BaseService) {
		s.healthCheckFunc = fn
	}
}

// WithHealthInterval sets the health check interval
func WithHealthInterval(interval time.Duration) Option {
	return func(s *BaseService) {
		s.healthInterval = interval
	}
}

// OnHealthChange sets a callback for health state changes
func OnHealthChange(fn func(bool)) Option {
	return func(s *BaseService) {
		s.onHealthChange = fn
	}
}

// Name returns the service name
func (s *BaseService) Name() string {
	return s.name
}

// Status returns the current service status
func (s *BaseService) Status() Status {
	return s.status.Load().(Status)
}

// IsHealthy returns whether the service is healthy
func (s *BaseService) IsHealthy() bool {
	return s.healthy.Load()
}

// Health returns the standard health status for the service
func (s *BaseService) Health() health.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.healthy.Load() && s.Status() == StatusRunning {
		failedChecks := s.failedHealthChecks.Load()
		message := fmt.Sprintf("Service is unhealthy (failed checks: %d)", failedChecks)
		return health.NewUnhealthy(s.name, message)
	}

	switch s.Status() {
	case StatusRunning:
		return health.NewHealthy(s.name, "Service operating normally")
	case StatusStarting:
		return health.NewDegraded(s.name, "Service is starting")
	case StatusStopping:
		return health.NewDegraded(s.name, "Service is stopping")
	case StatusStopped:
		return health.NewUnhealthy(s.name, "Service is stopped")
	default:
		return health.NewUnhealthy(s.name, fmt.Sprintf("Unknown status: %v", s.Status()))
	}
}

// Start starts the service
func (s *BaseService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	currentStatus := s.Status()
	if currentStatus == StatusRunning || currentStatus == StatusStarting {
		return nil
	}

	s.setStatus(StatusStarting)
	s.done = make(chan struct{})
	s.startTime.Store(time.Now())

	if s.healthInterval > 0 {
		s.healthTicker = time.NewTicker(s.healthInterval)
		s.waitGroup.Add(1)
		go s.healthMonitor()

		// Initial check after a short delay so startup goroutines settle.
		go func() {
			time.Sleep(200 * time.Millisecond)
			s.performHealthCheck()
		}()
	}

	s.waitGroup.Add(1)
	go s.contextMonitor(ctx)

	s.setStatus(StatusRunning)
	return nil
}

// Stop stops the service gracefully
func (s *BaseService) Stop(timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	currentStatus := s.Status()
	if currentStatus == StatusStopped || currentStatus == StatusStopping {
		return nil
	}

	s.setStatus(StatusStopping)

	if s.done != nil {
		select {
		case <-s.done:
		default:
			close(s.done)
		}
	}

	if s.healthTicker != nil {
		s.healthTicker.Stop()
	}

	if timeout == 0 {
		timeout = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.waitGroup.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		// Timeout - force shutdown
	}

	s.setStatus(StatusStopped)
	s.healthy.Store(false)

	return nil
}

// GetStatus returns the current service information
func (s *BaseService) GetStatus() Info {
	startTime := s.startTime.Load().(time.Time)

	uptime := time.Duration(0)
	if !startTime.IsZero() && s.Status() == StatusRunning {
		uptime = time.Since(startTime)
	}

	return Info{
		Name:               s.name,
		Status:             s.Status(),
		Uptime:             uptime,
		StartTime:          startTime,
		HealthChecks:       s.healthChecks.Load(),
		FailedHealthChecks: s.failedHealthChecks.Load(),
	}
}

func (s *BaseService) setStatus(status Status) {
	s.status.Store(status)
	if s.metricsRegistry != nil {
		s.metricsRegistry.CoreMetrics().RecordServiceStatus(s.name, int(status))
	}
}

// healthMonitor runs the health check monitoring loop
func (s *BaseService) healthMonitor() {
	defer s.waitGroup.Done()

	for {
		select {
		case <-s.done:
			return
		case <-s.healthTicker.C:
			s.performHealthCheck()
		}
	}
}

// performHealthCheck executes the health check
func (s *BaseService) performHealthCheck() {
	s.healthChecks.Add(1)

	var err error

	// Custom health check has priority
	if s.healthCheckFunc != nil {
		err = s.healthCheckFunc()
	}

	if err == nil && s.nats != nil && !s.nats.IsHealthy() {
		err = natsclient.ErrNotConnected
	}

	wasHealthy := s.healthy.Load()
	isHealthy := err == nil

	if err != nil {
		s.failedHealthChecks.Add(1)
	}

	s.healthy.Store(isHealthy)
	if s.metricsRegistry != nil {
		s.metricsRegistry.CoreMetrics().RecordHealthStatus(s.name, isHealthy)
	}

	if wasHealthy != isHealthy && s.onHealthChange != nil {
		go s.onHealthChange(isHealthy)
	}
}

// contextMonitor monitors the parent context for cancellation
func (s *BaseService) contextMonitor(ctx context.Context) {
	defer s.waitGroup.Done()

	select {
	case <-ctx.Done():
		s.performGracefulShutdown()
	case <-s.done:
		return
	}
}

// performGracefulShutdown transitions the service to stopped when the
// parent context is canceled.
func (s *BaseService) performGracefulShutdown() {
	if s.status.Load().(Status) != StatusRunning {
		return
	}
	s.setStatus(StatusStopping)

	if s.healthTicker != nil {
		s.healthTicker.Stop()
	}

	s.setStatus(StatusStopped)
	s.healthy.Store(false)
}

// Service defines the contract for all services.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(timeout time.Duration) error
	Status() Status
	IsHealthy() bool
	GetStatus() Info
	Health() health.Status
}
