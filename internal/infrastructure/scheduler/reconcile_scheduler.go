package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	appintegration "github.com/fieldops/backend/internal/application/integration"
	"github.com/fieldops/backend/internal/domain/fieldservice"
	"github.com/fieldops/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweep triggers
const (
	TriggerScheduled = "scheduled"
	TriggerStartup   = "startup"
	TriggerManual    = "manual"
	TriggerTenant    = "tenant"
)

// Reasons a sweep was skipped
const (
	SkipReasonBusy      = "busy"
	SkipReasonLockHeld  = "lock_held"
	SkipReasonLockError = "lock_error"
)

// TenantReconciler runs one reconciliation pass for a tenant
type TenantReconciler interface {
	ReconcileTenant(ctx context.Context, tenantID uuid.UUID) (*appintegration.PassResult, error)
}

// TenantSource lists the tenants a sweep visits
type TenantSource interface {
	FindActive(ctx context.Context) ([]fieldservice.IntegrationConfig, error)
}

// SweepLock is an optional cross-process guard. TryAcquire returns
// acquired=false without error when another holder owns the lock.
type SweepLock interface {
	TryAcquire(ctx context.Context) (release func(), acquired bool, err error)
}

// SweepRecorder receives sweep level measurements
type SweepRecorder interface {
	RecordSweep(ctx context.Context, trigger string, d time.Duration, tenants, failedTenants int)
	RecordSweepSkipped(ctx context.Context, reason string)
}

type nopSweepRecorder struct{}

func (nopSweepRecorder) RecordSweep(context.Context, string, time.Duration, int, int) {}
func (nopSweepRecorder) RecordSweepSkipped(context.Context, string)                   {}

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// ReconcileSchedulerConfig holds configuration for the reconciliation scheduler
type ReconcileSchedulerConfig struct {
	// Interval between scheduled sweeps
	Interval time.Duration

	// RunOnStart triggers one sweep as soon as the scheduler starts
	RunOnStart bool

	// TenantTimeout bounds a single tenant pass, zero means unbounded. ETS
	// calls already carry their own timeout, so the default is zero.
	TenantTimeout time.Duration
}

// DefaultReconcileSchedulerConfig returns default configuration
func DefaultReconcileSchedulerConfig() ReconcileSchedulerConfig {
	return ReconcileSchedulerConfig{
		Interval:   5 * time.Minute,
		RunOnStart: true,
	}
}

// Validate checks the configuration
func (c ReconcileSchedulerConfig) Validate() error {
	if c.Interval < time.Second {
		return fmt.Errorf("%w: interval must be at least 1s, got %s", ErrInvalidConfig, c.Interval)
	}
	if c.TenantTimeout < 0 {
		return fmt.Errorf("%w: tenant timeout must not be negative", ErrInvalidConfig)
	}
	return nil
}

// ---------------------------------------------------------------------------
// SweepResult
// ---------------------------------------------------------------------------

// SweepResult summarizes one sweep over every active tenant
type SweepResult struct {
	ID            uuid.UUID                    `json:"id"`
	Trigger       string                       `json:"trigger"`
	StartedAt     time.Time                    `json:"started_at"`
	Duration      time.Duration                `json:"duration"`
	Tenants       int                          `json:"tenants"`
	FailedTenants int                          `json:"failed_tenants"`
	Totals        appintegration.PassCounts    `json:"totals"`
	Passes        []*appintegration.PassResult `json:"-"`
	Error         string                       `json:"error,omitempty"`
}

// ---------------------------------------------------------------------------
// ReconcileScheduler
// ---------------------------------------------------------------------------

// ReconcileScheduler drives periodic reconciliation sweeps. Sweeps never
// overlap: a tick that finds a sweep running is dropped, not queued.
type ReconcileScheduler struct {
	reconciler TenantReconciler
	tenants    TenantSource
	lock       SweepLock
	recorder   SweepRecorder
	logger     *zap.Logger
	config     ReconcileSchedulerConfig

	mu        sync.Mutex
	cron      *cron.Cron
	baseCtx   context.Context
	running   bool
	lastSweep *SweepResult
	wg        sync.WaitGroup

	busy    atomic.Bool
	skipped atomic.Int64
}

// Option configures a ReconcileScheduler
type Option func(*ReconcileScheduler)

// WithSweepLock adds a cross-process lock checked before every sweep
func WithSweepLock(lock SweepLock) Option {
	return func(s *ReconcileScheduler) {
		s.lock = lock
	}
}

// WithSweepRecorder sets the sweep metrics recorder
func WithSweepRecorder(recorder SweepRecorder) Option {
	return func(s *ReconcileScheduler) {
		if recorder != nil {
			s.recorder = recorder
		}
	}
}

// NewReconcileScheduler creates a new reconciliation scheduler
func NewReconcileScheduler(
	reconciler TenantReconciler,
	tenants TenantSource,
	config ReconcileSchedulerConfig,
	logger *zap.Logger,
	opts ...Option,
) (*ReconcileScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ReconcileScheduler{
		reconciler: reconciler,
		tenants:    tenants,
		recorder:   nopSweepRecorder{},
		logger:     logger,
		config:     config,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start registers the sweep with cron. Sweeps run on a context detached
// from ctx: cancelling ctx does not cancel a running sweep.
func (s *ReconcileScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrSchedulerAlreadyRunning
	}

	cronLogger := logger.NewCronLogger(s.logger)
	c := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger)),
	)
	spec := fmt.Sprintf("@every %s", s.config.Interval)
	if _, err := c.AddFunc(spec, func() { s.tick(TriggerScheduled) }); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	s.baseCtx = context.WithoutCancel(ctx)
	s.cron = c
	s.running = true
	c.Start()

	if s.config.RunOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.tick(TriggerStartup)
		}()
	}

	s.logger.Info("Reconcile scheduler started",
		zap.Duration("interval", s.config.Interval),
		zap.Bool("run_on_start", s.config.RunOnStart),
		zap.Bool("distributed_lock", s.lock != nil),
	)
	return nil
}

// Stop removes the cron entry and waits for an in-flight sweep to finish or
// for ctx to expire. The sweep itself is never cancelled.
func (s *ReconcileScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.running = false
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	cronDone := c.Stop()
	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Reconcile scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Reconcile scheduler stop timed out, sweep still running")
		return ctx.Err()
	}
}

// TriggerNow runs one sweep synchronously on the caller's context
func (s *ReconcileScheduler) TriggerNow(ctx context.Context) (*SweepResult, error) {
	return s.runSweep(ctx, TriggerManual)
}

// SyncTenant runs a single tenant pass under the same skip-if-busy guard as
// a sweep
func (s *ReconcileScheduler) SyncTenant(ctx context.Context, tenantID uuid.UUID) (*appintegration.PassResult, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	return s.reconcileTenant(ctx, tenantID)
}

// IsRunning reports whether the cron entry is registered
func (s *ReconcileScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// IsSweeping reports whether a sweep or tenant pass is running in this process
func (s *ReconcileScheduler) IsSweeping() bool {
	return s.busy.Load()
}

// LastSweep returns the most recent completed sweep, nil before the first one
func (s *ReconcileScheduler) LastSweep() *SweepResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastSweep == nil {
		return nil
	}
	cp := *s.lastSweep
	return &cp
}

// SkippedSweeps counts ticks dropped because a sweep was already running
func (s *ReconcileScheduler) SkippedSweeps() int64 {
	return s.skipped.Load()
}

// Interval returns the configured sweep interval
func (s *ReconcileScheduler) Interval() time.Duration {
	return s.config.Interval
}

// ---------------------------------------------------------------------------
// Sweep
// ---------------------------------------------------------------------------

func (s *ReconcileScheduler) tick(trigger string) {
	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := s.runSweep(ctx, trigger); err != nil && !errors.Is(err, ErrSweepInProgress) {
		s.logger.Error("Reconciliation sweep failed",
			zap.String("trigger", trigger),
			zap.Error(err),
		)
	}
}

// acquire takes the in-process busy flag and, when configured, the
// distributed lock
func (s *ReconcileScheduler) acquire(ctx context.Context) (func(), error) {
	if !s.busy.CompareAndSwap(false, true) {
		s.skip(ctx, SkipReasonBusy)
		return nil, ErrSweepInProgress
	}
	if s.lock == nil {
		return func() { s.busy.Store(false) }, nil
	}

	unlock, acquired, err := s.lock.TryAcquire(ctx)
	if err != nil {
		s.busy.Store(false)
		s.skip(ctx, SkipReasonLockError)
		return nil, fmt.Errorf("acquire sweep lock: %w", err)
	}
	if !acquired {
		s.busy.Store(false)
		s.skip(ctx, SkipReasonLockHeld)
		return nil, ErrSweepInProgress
	}
	return func() {
		unlock()
		s.busy.Store(false)
	}, nil
}

func (s *ReconcileScheduler) skip(ctx context.Context, reason string) {
	s.skipped.Add(1)
	s.recorder.RecordSweepSkipped(ctx, reason)
	s.logger.Info("Reconciliation sweep skipped", zap.String("reason", reason))
}

func (s *ReconcileScheduler) runSweep(ctx context.Context, trigger string) (*SweepResult, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	result := &SweepResult{ID: uuid.New(), Trigger: trigger, StartedAt: time.Now()}
	ctx, log := logger.WithSweepID(ctx, s.logger, result.ID.String())

	configs, err := s.tenants.FindActive(ctx)
	if err != nil {
		result.Error = err.Error()
		s.finishSweep(ctx, log, result)
		return result, fmt.Errorf("list active tenants: %w", err)
	}

	for i := range configs {
		if ctx.Err() != nil {
			break
		}
		tenantID := configs[i].TenantID
		result.Tenants++

		pass, err := s.reconcileTenant(ctx, tenantID)
		if err != nil {
			result.FailedTenants++
			log.Error("Tenant reconciliation failed",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err),
			)
			continue
		}
		if pass == nil {
			continue
		}
		result.Passes = append(result.Passes, pass)
		result.Totals.Add(pass.PassCounts)
		if !pass.Succeeded() {
			result.FailedTenants++
		}
	}

	s.finishSweep(ctx, log, result)
	return result, nil
}

func (s *ReconcileScheduler) finishSweep(ctx context.Context, log *zap.Logger, result *SweepResult) {
	result.Duration = time.Since(result.StartedAt)

	s.mu.Lock()
	s.lastSweep = result
	s.mu.Unlock()

	s.recorder.RecordSweep(ctx, result.Trigger, result.Duration, result.Tenants, result.FailedTenants)
	log.Info("Reconciliation sweep finished",
		zap.String("trigger", result.Trigger),
		zap.Int("tenants", result.Tenants),
		zap.Int("failed_tenants", result.FailedTenants),
		zap.Int("created", result.Totals.Created),
		zap.Int("updated", result.Totals.Updated),
		zap.Duration("duration", result.Duration),
	)
}

// reconcileTenant runs one pass and turns a panic into an error so the
// sweep moves on to the next tenant
func (s *ReconcileScheduler) reconcileTenant(ctx context.Context, tenantID uuid.UUID) (result *appintegration.PassResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Tenant reconciliation panicked",
				zap.String("tenant_id", tenantID.String()),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			result = nil
			err = fmt.Errorf("%w: %v", ErrTenantPanicked, r)
		}
	}()

	if s.config.TenantTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.TenantTimeout)
		defer cancel()
	}
	return s.reconciler.ReconcileTenant(ctx, tenantID)
}

var _ appintegration.TenantSyncTrigger = (*ReconcileScheduler)(nil)
