package container

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnboundProvider(t *testing.T) {
	var p Provider[Notifier]
	assert.False(t, p.Bound())

	_, err := p.Get()
	var cerr *ContainerError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, CodeUnsatisfiedDependency, cerr.Code)
	assert.Panics(t, func() { p.MustGet() })
}

func TestProviderFor(t *testing.T) {
	ctx := startContext(t,
		Class[StripeGateway](WithName("stripe")),
		Class[PaypalGateway](WithName("paypal")),
		Class[EmailNotifier](),
		Class[InventoryRepository](WithScope(ScopeSingleton)),
	)

	notifiers := ProviderFor[Notifier](ctx)
	require.True(t, notifiers.Bound())
	n1, err := notifiers.Get()
	require.NoError(t, err)
	n2 := notifiers.MustGet()
	assert.NotSame(t, n1, n2, "dependent beans are created on every Get")

	repos := ProviderFor[*InventoryRepository](ctx)
	assert.Same(t, repos.MustGet(), repos.MustGet())

	paypal := ProviderFor[PaymentGateway](ctx, Named("paypal"))
	assert.Equal(t, "paypal:7", paypal.MustGet().Pay(7))

	_, err = ProviderFor[PaymentGateway](ctx).Get()
	var ambiguous *AmbiguousResolutionError
	assert.ErrorAs(t, err, &ambiguous, "resolution happens on Get")
}

func TestInjectedProviderKeepsQualifiers(t *testing.T) {
	type checkout struct {
		Payments Provider[PaymentGateway] `inject:"Named=paypal"`
	}
	ctx := startContext(t,
		Class[StripeGateway](WithName("stripe")),
		Class[PaypalGateway](WithName("paypal")),
		Class[checkout](),
	)

	c := MustLookup[*checkout](ctx)
	require.True(t, c.Payments.Bound())
	assert.Equal(t, "paypal:1", c.Payments.MustGet().Pay(1))
}

func TestProviderAfterStop(t *testing.T) {
	ctx, err := StartWithConfig(testConfig(), func(b ContextBuilder) {
		b.Register(Class[EmailNotifier]())
	})
	require.NoError(t, err)
	p := ProviderFor[Notifier](ctx)
	require.NoError(t, ctx.Stop(context.Background()))

	_, err = p.Get()
	var stopped *ContextStoppedError
	assert.True(t, errors.As(err, &stopped))
}

func TestProvidedType(t *testing.T) {
	typ, ok := providedType(reflect.TypeOf((*Provider[Notifier])(nil)).Elem())
	require.True(t, ok)
	assert.Equal(t, reflect.TypeOf((*Notifier)(nil)).Elem(), typ)

	typ, ok = providedType(reflect.TypeOf((*Provider[*LazyB])(nil)).Elem())
	require.True(t, ok)
	assert.Equal(t, reflect.TypeOf((**LazyB)(nil)).Elem(), typ)

	_, ok = providedType(reflect.TypeOf((*StripeGateway)(nil)).Elem())
	assert.False(t, ok)
	_, ok = providedType(reflect.TypeOf((**Provider[Notifier])(nil)).Elem())
	assert.False(t, ok)
}
