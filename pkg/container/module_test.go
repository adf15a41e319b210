package container

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type SmsNotifier struct {
	numbers []string
}

func (n *SmsNotifier) Notify(msg string) { n.numbers = append(n.numbers, msg) }

type mapProperties map[string]string

func (m mapProperties) Property(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

func (m mapProperties) PropertiesWithPrefix(string) map[string]string { return nil }

func (m mapProperties) HasClass(reflect.Type) bool { return false }

var defaultNotifications = NewModule("notifications", Class[EmailNotifier]()).
	When(OnMissingClass(TypeOf[Notifier]()))

func TestOnMissingClassProvidesDefault(t *testing.T) {
	ctx := startWith(t, testConfig(), func(b ContextBuilder) {
		b.AddModule(defaultNotifications)
	})
	n, err := Lookup[Notifier](ctx)
	require.NoError(t, err)
	assert.IsType(t, &EmailNotifier{}, n)
	assert.Equal(t, "notifications", ctx.GetBeanDefinition(TypeOf[EmailNotifier]()).Module())
}

func TestOnMissingClassBacksOff(t *testing.T) {
	ctx := startWith(t, testConfig(), func(b ContextBuilder) {
		// the module is queued first but applied after direct registrations
		b.AddModule(defaultNotifications)
		b.Register(Class[SmsNotifier]())
	})
	n, err := Lookup[Notifier](ctx)
	require.NoError(t, err)
	assert.IsType(t, &SmsNotifier{}, n)
	assert.Nil(t, ctx.GetBeanDefinition(TypeOf[EmailNotifier]()))
}

func TestPropertyConditions(t *testing.T) {
	ctx := mapProperties{"payments.provider": "stripe", "cache.url": "", "debug": "true"}

	assert.True(t, OnProperty("payments.provider", "stripe")(ctx))
	assert.False(t, OnProperty("payments.provider", "paypal")(ctx))
	assert.False(t, OnProperty("missing", "")(ctx))
	assert.True(t, OnPropertyPresent("debug")(ctx))
	assert.False(t, OnPropertyPresent("cache.url")(ctx), "empty counts as absent")
	assert.False(t, OnMissingProperty("cache.url")(ctx))
	assert.True(t, OnMissingProperty("missing")(ctx))

	yes, no := OnPropertyPresent("debug"), OnPropertyPresent("missing")
	assert.True(t, AllOf(yes, nil)(ctx))
	assert.False(t, AllOf(yes, no)(ctx))
	assert.True(t, AllOf()(ctx))
	assert.True(t, AnyOf(no, yes)(ctx))
	assert.False(t, AnyOf(no, nil)(ctx))
	assert.False(t, AnyOf()(ctx))
	assert.True(t, Not(no)(ctx))
}

func TestModuleWhenCombinesConditions(t *testing.T) {
	m := NewModule("cache", Class[InventoryRepository]()).
		When(OnPropertyPresent("cache.url")).
		When(Not(OnProperty("cache.enabled", "false")))

	tests := []struct {
		name  string
		props map[string]string
		want  bool
	}{
		{"both hold", map[string]string{"cache.url": "redis://"}, true},
		{"first fails", map[string]string{}, false},
		{"second fails", map[string]string{"cache.url": "redis://", "cache.enabled": "false"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := startWith(t, testConfig(), func(b ContextBuilder) {
				for k, v := range tt.props {
					b.SetProperty(k, v)
				}
				b.AddModule(m)
			})
			assert.Equal(t, tt.want, ctx.GetBeanDefinition(TypeOf[InventoryRepository]()) != nil)
		})
	}
}

func TestModuleErrorFailsStart(t *testing.T) {
	_, err := StartWithConfig(testConfig(), func(b ContextBuilder) {
		b.AddModule(Module{
			Name: "broken",
			Configure: func(ConditionContext) ([]*ClassRef, error) {
				return nil, errors.New("no credentials")
			},
		})
	})
	var cerr *ContainerError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, CodeConfiguration, cerr.Code)
	assert.Contains(t, err.Error(), "no credentials")
}

func TestRegistrationErrorFailsStart(t *testing.T) {
	_, err := StartWithConfig(testConfig(), func(b ContextBuilder) {
		b.Register(nil, Class[StripeGateway]())
	})
	var cerr *ContainerError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, CodeConfiguration, cerr.Code)
}
