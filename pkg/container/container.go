package container

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type applicationContext struct {
	id         string
	config     *Config
	properties *Properties
	registry   *defaultBeanRegistry
	resolver   *resolver
	validator  *defaultGraphValidator
	scopes     *scopeManager
	lifecycle  *lifecycleManager
	metrics    MetricsCollector
	logger     *slog.Logger
	stopped    atomic.Bool
}

// contextBuilder collects registrations until the block returns
type contextBuilder struct {
	registry *defaultBeanRegistry
	modules  []Module
	errs     []error
}

func (b *contextBuilder) Register(classes ...*ClassRef) {
	for _, class := range classes {
		if _, err := b.registry.CreateBean(class); err != nil {
			b.errs = append(b.errs, err)
		}
	}
}

func (b *contextBuilder) AddModule(module Module) {
	b.modules = append(b.modules, module)
}

func (b *contextBuilder) SetProperty(name, value string) {
	b.registry.properties.Set(name, value)
}

func (b *contextBuilder) Property(name string) (string, bool) {
	return b.registry.properties.Lookup(name)
}

// Start creates a context with the default configuration and the given classes
func Start(classes ...*ClassRef) (ApplicationContext, error) {
	return StartWithConfig(nil, func(builder ContextBuilder) {
		builder.Register(classes...)
	})
}

// StartWithConfig creates a context: property loaders run, then block, then
// the queued modules. The bean graph is validated before the context is
// returned, and every problem found is reported in one ValidationError.
func StartWithConfig(cfg *Config, block func(ContextBuilder)) (ApplicationContext, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	id := uuid.NewString()
	logger := cfg.logger().With("context_id", id)
	logger.Info("Starting application context")

	metrics, err := newMetricsCollector(cfg.EnableMetrics, cfg.MetricsRegistry)
	if err != nil {
		return nil, ConfigurationError("registering metrics", err)
	}
	properties := NewProperties()
	registry := newBeanRegistry(properties, logger)

	builder := &contextBuilder{registry: registry}
	for _, loader := range cfg.PropertyLoaders {
		if err := loader.Load(builder); err != nil {
			return nil, fmt.Errorf("loading properties: %w", err)
		}
	}
	if block != nil {
		block(builder)
	}
	if len(builder.errs) > 0 {
		return nil, ConfigurationError("registering classes", errors.Join(builder.errs...))
	}
	for _, module := range builder.modules {
		if err := registry.AddModule(module); err != nil {
			return nil, ConfigurationError("adding module", err)
		}
	}

	registry.seal()

	ctx := &applicationContext{
		id:         id,
		config:     cfg,
		properties: properties,
		registry:   registry,
		metrics:    metrics,
		logger:     logger,
	}
	ctx.resolver = newResolver(registry, cfg.StrictQualifiers, logger)
	ctx.validator = newGraphValidator(registry, ctx.resolver, metrics, logger)
	if err := ctx.validator.Validate(); err != nil {
		return nil, err
	}
	ctx.scopes = newScopeManager(ctx.resolver, &providerFactory{ctx: ctx}, cfg.RetryFailedSingletons, metrics, logger)
	ctx.lifecycle = newLifecycleManager(ctx.scopes, metrics, logger)

	if cfg.EagerSingletons {
		initializer := newSingletonInitializer(registry, ctx.validator, ctx.scopes, logger)
		if err := initializer.InitializeAll(); err != nil {
			if stopErr := ctx.Stop(context.Background()); stopErr != nil {
				logger.Error("Error stopping partially started context", "error", stopErr)
			}
			return nil, err
		}
	}

	logger.Info("Application context started",
		"beans", len(registry.Definitions()),
		"time_ms", time.Since(start).Milliseconds())
	return ctx, nil
}

func (c *applicationContext) ID() string {
	return c.id
}

func (c *applicationContext) Lookup(t reflect.Type, qualifiers ...Qualifier) (any, error) {
	if c.stopped.Load() {
		return nil, &ContextStoppedError{ContextID: c.id}
	}

	start := time.Now()
	def, err := c.resolver.resolve(t, NewQualifierSet(qualifiers...))
	if err != nil {
		c.metrics.RecordLookup(unresolvedBean, time.Since(start), err)
		return nil, err
	}

	instance, err := c.scopes.get(def)
	c.metrics.RecordLookup(def.name, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func (c *applicationContext) GetBeanDefinition(class reflect.Type) *BeanDefinition {
	return c.registry.GetBeanDefinition(class)
}

func (c *applicationContext) BeanDefinitions() []*BeanDefinition {
	return c.registry.Definitions()
}

func (c *applicationContext) Properties() *Properties {
	return c.properties
}

func (c *applicationContext) Metrics() map[string]*BeanMetrics {
	return c.metrics.GetMetrics()
}

func (c *applicationContext) Stop(ctx context.Context) error {
	if !c.stopped.CompareAndSwap(false, true) {
		return nil
	}
	c.logger.Info("Stopping application context")
	err := c.lifecycle.DestroyAll(ctx)
	c.scopes.clear()
	c.logger.Info("Application context stopped")
	return err
}

// Lookup returns the bean assignable to T. T is an interface or a pointer to
// a struct class.
func Lookup[T any](ctx ApplicationContext, qualifiers ...Qualifier) (T, error) {
	var zero T
	instance, err := ctx.Lookup(reflect.TypeOf((*T)(nil)).Elem(), qualifiers...)
	if err != nil {
		return zero, err
	}
	typed, ok := instance.(T)
	if !ok {
		return zero, &TypeMismatchError{Expected: reflect.TypeOf((*T)(nil)).Elem().String(), Got: fmt.Sprintf("%T", instance)}
	}
	return typed, nil
}

// MustLookup is like Lookup but panics on error
func MustLookup[T any](ctx ApplicationContext, qualifiers ...Qualifier) T {
	v, err := Lookup[T](ctx, qualifiers...)
	if err != nil {
		panic(err)
	}
	return v
}

// TypeOf returns the reflect.Type of T, for Lookup, OnClass and friends
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
