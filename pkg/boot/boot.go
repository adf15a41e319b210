// Package boot is the composition root: it starts an application context,
// runs its background beans and serves diagnostics until a signal arrives.
package boot

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/01fortes/gocdi/pkg/container"
)

// DiagnosticsAddrProperty names the property holding the diagnostics listen
// address. Diagnostics are not served when it is unset.
const DiagnosticsAddrProperty = "boot.diagnostics.addr"

// DiagnosticsOriginsProperty lists the origins allowed to read diagnostics
// cross-origin, comma separated
const DiagnosticsOriginsProperty = "boot.diagnostics.allowed_origins"

// ShutdownTimeout bounds PreDestroy callbacks and the diagnostics server shutdown
var ShutdownTimeout = 30 * time.Second

// Application represents a complete application
type Application struct {
	ctx       context.Context
	cancel    context.CancelFunc
	container container.ApplicationContext
	registry  *prometheus.Registry
	server    *http.Server
	runners   func()
	logger    *slog.Logger
}

// Run blocks until shutdown is requested, then stops the application
func (a *Application) Run() error {
	// Wait for termination signal
	<-a.ctx.Done()

	// Perform cleanup
	return a.Shutdown()
}

// Shutdown gracefully stops the application: diagnostics server, background
// beans, then the context with its PreDestroy callbacks. Safe to call twice.
func (a *Application) Shutdown() error {
	if a.cancel == nil {
		return nil
	}
	a.cancel()
	a.cancel = nil

	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	var errs []error
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.runners != nil {
		a.runners()
	}
	if err := a.container.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	a.logger.Info("Application stopped")
	return errors.Join(errs...)
}

// GetContainer returns the application container
func (a *Application) GetContainer() container.ApplicationContext {
	return a.container
}

// Handler returns the diagnostics handler for this application
func (a *Application) Handler() http.Handler {
	return DiagnosticsHandler(a.container, a.registry)
}

// New creates a new application with the given configuration. A nil cfg
// means container.DefaultConfig(). Metrics go to a private Prometheus
// registry unless cfg names one.
func New(cfg *container.Config, block func(container.ContextBuilder)) (*Application, error) {
	if cfg == nil {
		cfg = container.DefaultConfig()
	}
	c := *cfg
	if c.EnableMetrics && c.MetricsRegistry == nil {
		c.MetricsRegistry = prometheus.NewRegistry()
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Create a context that can be cancelled
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	// Start the container
	logger.Info("Starting application")
	appCtx, err := container.StartWithConfig(&c, block)
	if err != nil {
		cancel()
		return nil, err
	}

	app := &Application{
		ctx:       ctx,
		cancel:    cancel,
		container: appCtx,
		registry:  c.MetricsRegistry,
		logger:    logger.With("context_id", appCtx.ID()),
	}

	app.runners, err = container.StartRunners(ctx, appCtx, app.logger)
	if err != nil {
		_ = app.Shutdown()
		return nil, err
	}

	if addr, ok := appCtx.Properties().Lookup(DiagnosticsAddrProperty); ok && addr != "" {
		app.serve(addr)
	}
	return app, nil
}

func (a *Application) serve(addr string) {
	a.server = &http.Server{
		Addr:              addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		a.logger.Info("Diagnostics listening", "addr", addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Diagnostics server failed", "error", err)
		}
	}()
}
