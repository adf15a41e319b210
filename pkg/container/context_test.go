package container

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counted struct {
	id int64
}

type failing struct{}

var errNoDatabase = errors.New("no database")

type panicky struct{}

func (panicky) PostConstruct() error { panic("half built") }

type reentrant struct {
	self Provider[*reentrant] `inject:""`
}

func (r *reentrant) PostConstruct() error {
	_, err := r.self.Get()
	return err
}

type destroyLog struct {
	mu    sync.Mutex
	names []string
}

func (l *destroyLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.names = append(l.names, name)
}

type poolBean struct {
	log *destroyLog `inject:""`
}

func (p *poolBean) PreDestroy(context.Context) error {
	p.log.add("pool")
	return nil
}

type cacheBean struct {
	log  *destroyLog `inject:""`
	pool *poolBean   `inject:""`
}

func (c *cacheBean) PreDestroy(context.Context) error {
	c.log.add("cache")
	return nil
}

type brokenCloser struct {
	log *destroyLog `inject:""`
}

func (b *brokenCloser) PreDestroy(context.Context) error {
	return errors.New("socket already closed")
}

type panickingCloser struct {
	log *destroyLog `inject:""`
}

func (p *panickingCloser) PreDestroy(context.Context) error {
	panic("closing twice")
}

func orderClasses() []*ClassRef {
	return []*ClassRef{
		Class[StripeGateway](WithName("stripe")),
		Class[InventoryRepository](),
		Class[EmailNotifier](),
		Class[OrderService](WithStereotypes(Service)),
	}
}

func TestLookupInjectsFields(t *testing.T) {
	ctx := startContext(t, orderClasses()...)

	svc, err := Lookup[*OrderService](ctx)
	require.NoError(t, err)
	assert.True(t, svc.ready, "PostConstruct runs after injection")
	assert.Equal(t, "stripe:5", svc.Gateway.Pay(5))

	notifier, err := svc.notifier.Get()
	require.NoError(t, err)
	assert.IsType(t, &EmailNotifier{}, notifier)

	gateway, err := Lookup[PaymentGateway](ctx, Named("stripe"))
	require.NoError(t, err)
	assert.Equal(t, "stripe:1", gateway.Pay(1))
}

func TestLookupEmbeddedAndUnexportedFields(t *testing.T) {
	ctx := startContext(t,
		Class[StripeGateway](),
		Class[EmailNotifier](WithName("mid")),
		Class[InventoryRepository](),
		Class[leafHandler](),
	)

	h, err := Lookup[*leafHandler](ctx)
	require.NoError(t, err)
	assert.NotNil(t, h.repo)
	assert.Nil(t, h.skip)
	assert.NotNil(t, h.Notifier)
	assert.Nil(t, h.baseHandler.Notifier, "hidden field is not injected")
	assert.NotNil(t, h.Gateway)
}

func TestSingletonAndDependentScopes(t *testing.T) {
	ctx := startContext(t,
		Class[InventoryRepository](WithScope(ScopeSingleton)),
		Class[EmailNotifier](),
	)

	a := MustLookup[*InventoryRepository](ctx)
	b := MustLookup[*InventoryRepository](ctx)
	assert.Same(t, a, b)

	n1 := MustLookup[Notifier](ctx)
	n2 := MustLookup[Notifier](ctx)
	assert.NotSame(t, n1, n2)
}

func TestConcurrentSingletonCreatedOnce(t *testing.T) {
	var calls atomic.Int64
	ctx := startContext(t, Class[counted](
		WithScope(ScopeSingleton),
		WithConstructor(func() *counted { return &counted{id: calls.Add(1)} }),
	))

	const workers = 50
	results := make([]*counted, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = MustLookup[*counted](ctx)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load())
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}

func TestConstructorInjection(t *testing.T) {
	ctx := startContext(t,
		Class[StripeGateway](WithName("stripe")),
		Class[PaypalGateway](WithName("paypal")),
		Class[InventoryRepository](),
		Class[constructed](WithConstructor(newConstructed, Qualified(Named("paypal")))),
	)

	c, err := Lookup[*constructed](ctx)
	require.NoError(t, err)
	assert.Equal(t, "paypal:3", c.gateway.Pay(3))
	assert.NotNil(t, c.repo)
}

func TestConstructorError(t *testing.T) {
	ctx := startContext(t, Class[failing](WithConstructor(func() (*failing, error) {
		return nil, errNoDatabase
	})))

	_, err := Lookup[*failing](ctx)
	var inst *InstantiationError
	require.True(t, errors.As(err, &inst))
	assert.Equal(t, "failing", inst.Bean.Name())
	assert.ErrorIs(t, err, errNoDatabase)
}

func TestConstructorReturningNil(t *testing.T) {
	ctx := startContext(t, Class[failing](WithConstructor(func() *failing { return nil })))

	_, err := Lookup[*failing](ctx)
	var inst *InstantiationError
	require.True(t, errors.As(err, &inst))
	assert.Contains(t, err.Error(), "constructor returned nil")
}

func TestInitializerInjection(t *testing.T) {
	ctx := startContext(t,
		Class[StripeGateway](WithName("stripe")),
		Class[PaypalGateway](WithName("paypal")),
		Class[initialized](WithInitializer("Setup", Qualified(Named("paypal")))),
	)

	i, err := Lookup[*initialized](ctx)
	require.NoError(t, err)
	assert.Equal(t, "paypal:2", i.gateway.Pay(2))
}

func TestPostConstructPanic(t *testing.T) {
	ctx := startContext(t, Class[panicky]())

	_, err := Lookup[*panicky](ctx)
	var inst *InstantiationError
	require.True(t, errors.As(err, &inst))
	assert.Contains(t, err.Error(), "half built")
}

func TestFailedSingletonRetried(t *testing.T) {
	var calls atomic.Int64
	flaky := func() (*failing, error) {
		if calls.Add(1) == 1 {
			return nil, errNoDatabase
		}
		return &failing{}, nil
	}
	ctx := startContext(t, Class[failing](WithScope(ScopeSingleton), WithConstructor(flaky)))

	_, err := Lookup[*failing](ctx)
	require.ErrorIs(t, err, errNoDatabase)

	_, err = Lookup[*failing](ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())
}

func TestFailedSingletonPinned(t *testing.T) {
	var calls atomic.Int64
	flaky := func() (*failing, error) {
		if calls.Add(1) == 1 {
			return nil, errNoDatabase
		}
		return &failing{}, nil
	}
	cfg := testConfig()
	cfg.RetryFailedSingletons = false
	ctx := startWith(t, cfg, func(b ContextBuilder) {
		b.Register(Class[failing](WithScope(ScopeSingleton), WithConstructor(flaky)))
	})

	_, err := Lookup[*failing](ctx)
	require.ErrorIs(t, err, errNoDatabase)

	_, err = Lookup[*failing](ctx)
	require.ErrorIs(t, err, errNoDatabase)
	assert.Equal(t, int64(1), calls.Load())
}

func TestProviderReentryDuringConstruction(t *testing.T) {
	ctx := startContext(t, Class[reentrant](WithScope(ScopeSingleton)))

	_, err := Lookup[*reentrant](ctx)
	var cycle *CircularDependencyError
	require.True(t, errors.As(err, &cycle))
	assert.Equal(t, []string{"reentrant", "reentrant"}, cycle.Cycle)

	var inst *InstantiationError
	assert.True(t, errors.As(err, &inst))
}

func TestStopDestroysInReverseOrder(t *testing.T) {
	log := &destroyLog{}
	ctx, err := StartWithConfig(testConfig(), func(b ContextBuilder) {
		b.Register(
			Instance(log),
			Class[poolBean](WithScope(ScopeSingleton)),
			Class[cacheBean](WithScope(ScopeSingleton)),
		)
	})
	require.NoError(t, err)

	cache := MustLookup[*cacheBean](ctx)
	assert.Same(t, log, cache.log)
	assert.Same(t, cache.pool, MustLookup[*poolBean](ctx))

	require.NoError(t, ctx.Stop(context.Background()))
	assert.Equal(t, []string{"cache", "pool"}, log.names)

	_, err = Lookup[*cacheBean](ctx)
	var stopped *ContextStoppedError
	require.True(t, errors.As(err, &stopped))
	assert.Equal(t, ctx.ID(), stopped.ContextID)

	assert.NoError(t, ctx.Stop(context.Background()), "second stop is a no-op")
	assert.Len(t, log.names, 2)
}

func TestStopJoinsDestroyErrors(t *testing.T) {
	log := &destroyLog{}
	ctx, err := StartWithConfig(testConfig(), func(b ContextBuilder) {
		b.Register(
			Instance(log),
			Class[poolBean](WithScope(ScopeSingleton)),
			Class[brokenCloser](WithScope(ScopeSingleton)),
			Class[panickingCloser](WithScope(ScopeSingleton)),
		)
	})
	require.NoError(t, err)

	MustLookup[*poolBean](ctx)
	MustLookup[*brokenCloser](ctx)
	MustLookup[*panickingCloser](ctx)

	err = ctx.Stop(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "socket already closed")
	assert.Contains(t, err.Error(), "closing twice")
	assert.Equal(t, []string{"pool"}, log.names, "failures do not stop the remaining callbacks")
}

func TestStopWithCancelledContext(t *testing.T) {
	log := &destroyLog{}
	ctx, err := StartWithConfig(testConfig(), func(b ContextBuilder) {
		b.Register(Instance(log), Class[poolBean](WithScope(ScopeSingleton)))
	})
	require.NoError(t, err)
	MustLookup[*poolBean](ctx)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	err = ctx.Stop(cancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, log.names)
}

func TestEagerSingletons(t *testing.T) {
	var calls atomic.Int64
	cfg := testConfig()
	cfg.EagerSingletons = true
	ctx := startWith(t, cfg, func(b ContextBuilder) {
		b.Register(
			Class[counted](WithScope(ScopeSingleton), WithConstructor(func() *counted { return &counted{id: calls.Add(1)} })),
			Class[EmailNotifier](),
		)
	})
	assert.Equal(t, int64(1), calls.Load(), "created before the first lookup")

	MustLookup[*counted](ctx)
	assert.Equal(t, int64(1), calls.Load())
}

func TestEagerSingletonFailureFailsStart(t *testing.T) {
	cfg := testConfig()
	cfg.EagerSingletons = true
	_, err := StartWithConfig(cfg, func(b ContextBuilder) {
		b.Register(Class[failing](WithScope(ScopeSingleton), WithConstructor(func() (*failing, error) {
			return nil, errNoDatabase
		})))
	})
	assert.ErrorIs(t, err, errNoDatabase)
}

func TestInstanceRegistration(t *testing.T) {
	inv := &InventoryRepository{items: map[string]int{"apple": 3}}
	ctx := startContext(t, Instance(inv, WithName("stock")))

	got, err := Lookup[*InventoryRepository](ctx, Named("stock"))
	require.NoError(t, err)
	assert.Same(t, inv, got)
	assert.Equal(t, ScopeSingleton, ctx.GetBeanDefinition(TypeOf[InventoryRepository]()).Scope())

	_, err = Start(Instance(InventoryRepository{}))
	var invalid *InvalidBeanDefinitionError
	assert.True(t, errors.As(err, &invalid))
}

func TestLookupTypeMismatch(t *testing.T) {
	ctx := startContext(t, Class[StripeGateway]())

	_, err := Lookup[StripeGateway](ctx)
	var mismatch *TypeMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, CodeTypeMismatch, mismatch.Code())
}

func TestLookupUnsatisfied(t *testing.T) {
	ctx := startContext(t, Class[StripeGateway]())

	_, err := Lookup[Notifier](ctx)
	var unsatisfied *UnsatisfiedDependencyError
	assert.True(t, errors.As(err, &unsatisfied))

	assert.Panics(t, func() { MustLookup[Notifier](ctx) })
}

func TestContextIntrospection(t *testing.T) {
	ctx := startContext(t, orderClasses()...)

	assert.NotEmpty(t, ctx.ID())
	defs := ctx.BeanDefinitions()
	require.Len(t, defs, 4)
	assert.Equal(t, "stripe", defs[0].Name())

	svc := ctx.GetBeanDefinition(TypeOf[OrderService]())
	require.NotNil(t, svc)
	assert.Equal(t, []string{"Service"}, svc.Stereotypes())
	assert.Len(t, svc.InjectionPoints(), 3)
	assert.Nil(t, ctx.GetBeanDefinition(TypeOf[PaypalGateway]()))
}
