package container

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Runner is a singleton bean with a main loop. StartRunners runs it in a
// managed goroutine until the context passed to it is cancelled.
type Runner interface {
	Run(ctx context.Context)
}

// Schedule defines when a ScheduledRunner executes
type Schedule struct {
	Interval     time.Duration
	InitialDelay time.Duration
	RunOnStartup bool
}

// ScheduledRunner is a singleton bean executed on a fixed interval
type ScheduledRunner interface {
	Schedule() Schedule
	Execute(ctx context.Context)
}

// lifecycleManager runs PreDestroy callbacks when the context stops
type lifecycleManager struct {
	scopes  *scopeManager
	metrics MetricsCollector
	logger  *slog.Logger
}

func newLifecycleManager(scopes *scopeManager, metrics MetricsCollector, logger *slog.Logger) *lifecycleManager {
	return &lifecycleManager{
		scopes:  scopes,
		metrics: metrics,
		logger:  logger,
	}
}

// DestroyAll calls PreDestroy on every created singleton in reverse creation
// order, so a bean is destroyed before the beans it was built from. Failures
// are logged and joined; a cancelled ctx skips the remaining callbacks.
func (m *lifecycleManager) DestroyAll(ctx context.Context) error {
	created := m.scopes.createdSingletons()
	m.logger.Info("Destroying singletons", "count", len(created))

	var errs []error
	for i := len(created) - 1; i >= 0; i-- {
		def := created[i]
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("destroying %s: %w", def.name, err))
			break
		}

		destroyer, ok := m.scopes.instanceOf(def).(PreDestroyer)
		if !ok {
			continue
		}
		if err := m.destroy(ctx, def, destroyer); err != nil {
			m.logger.Error("Error destroying bean", "name", def.name, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *lifecycleManager) destroy(ctx context.Context, def *BeanDefinition, destroyer PreDestroyer) (err error) {
	m.logger.Debug("Destroying bean", "name", def.name)

	// Capture panics in bean shutdown
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s pre destroy: %v", def.name, r)
		}
	}()

	start := time.Now()
	if err := destroyer.PreDestroy(ctx); err != nil {
		return fmt.Errorf("pre destroy %s: %w", def.name, err)
	}
	duration := time.Since(start)
	m.metrics.RecordStopDuration(def.name, duration)

	m.logger.Debug("Bean destroyed",
		"name", def.name,
		"time_ms", duration.Milliseconds())
	return nil
}

// StartRunners looks up every singleton implementing Runner or ScheduledRunner
// and runs it in its own goroutine. The returned function blocks until all of
// them have returned after ctx is cancelled.
func StartRunners(ctx context.Context, appCtx ApplicationContext, logger *slog.Logger) (wait func(), err error) {
	if logger == nil {
		logger = slog.Default()
	}
	var wg sync.WaitGroup

	for _, def := range appCtx.BeanDefinitions() {
		if def.Scope() != ScopeSingleton {
			continue
		}
		instance, err := appCtx.Lookup(def.Class())
		if err != nil {
			return nil, err
		}

		if runner, ok := instance.(Runner); ok {
			wg.Add(1)
			go func(r Runner, name string) {
				defer wg.Done()
				defer recoverRunner(logger, name)
				logger.Info("Background bean running", "name", name)
				r.Run(ctx)
				logger.Info("Background bean completed", "name", name)
			}(runner, def.Name())
		}

		if scheduled, ok := instance.(ScheduledRunner); ok {
			wg.Add(1)
			go func(s ScheduledRunner, name string) {
				defer wg.Done()
				defer recoverRunner(logger, name)
				runScheduled(ctx, s, name, logger)
			}(scheduled, def.Name())
		}
	}
	return wg.Wait, nil
}

func runScheduled(ctx context.Context, bean ScheduledRunner, name string, logger *slog.Logger) {
	sched := bean.Schedule()
	if sched.Interval <= 0 {
		logger.Error("Scheduled bean has no interval, not running", "name", name)
		return
	}

	// Run immediately if configured
	if sched.RunOnStartup {
		logger.Debug("Executing scheduled bean on startup", "name", name)
		bean.Execute(ctx)
	}

	if sched.InitialDelay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(sched.InitialDelay):
		}
	}

	ticker := time.NewTicker(sched.Interval)
	defer ticker.Stop()

	logger.Info("Scheduled bean running",
		"name", name,
		"interval", sched.Interval.String())

	for {
		select {
		case <-ctx.Done():
			logger.Info("Scheduled bean stopping due to context cancellation", "name", name)
			return
		case <-ticker.C:
			logger.Debug("Executing scheduled bean", "name", name)
			bean.Execute(ctx)
		}
	}
}

func recoverRunner(logger *slog.Logger, name string) {
	if r := recover(); r != nil {
		logger.Error("Panic in background bean", "name", name, "error", r)
	}
}
