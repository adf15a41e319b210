package container

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func testConfig() *Config {
	return &Config{
		EnableMetrics:         true,
		RetryFailedSingletons: true,
		Logger:                discardLogger,
	}
}

func startContext(t *testing.T, classes ...*ClassRef) ApplicationContext {
	t.Helper()
	return startWith(t, testConfig(), func(b ContextBuilder) {
		b.Register(classes...)
	})
}

func startWith(t *testing.T, cfg *Config, block func(ContextBuilder)) ApplicationContext {
	t.Helper()
	ctx, err := StartWithConfig(cfg, block)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctx.Stop(context.Background()) })
	return ctx
}

func newTestRegistry() *defaultBeanRegistry {
	return newBeanRegistry(NewProperties(), discardLogger)
}

type PaymentGateway interface {
	Pay(amount int) string
}

type StripeGateway struct{}

func (g *StripeGateway) Pay(amount int) string { return fmt.Sprintf("stripe:%d", amount) }

type PaypalGateway struct{}

func (g *PaypalGateway) Pay(amount int) string { return fmt.Sprintf("paypal:%d", amount) }

type Notifier interface {
	Notify(msg string)
}

type EmailNotifier struct {
	sent []string
}

func (n *EmailNotifier) Notify(msg string) { n.sent = append(n.sent, msg) }

type InventoryRepository struct {
	items map[string]int
}

type OrderService struct {
	Gateway   PaymentGateway       `inject:"Named=stripe"`
	inventory *InventoryRepository `inject:""`
	notifier  Provider[Notifier]   `inject:""`
	ready     bool
}

func (s *OrderService) PostConstruct() error {
	s.ready = s.Gateway != nil && s.inventory != nil && s.notifier.Bound()
	return nil
}

type CycleA struct {
	B *CycleB `inject:""`
}

type CycleB struct {
	A *CycleA `inject:""`
}

type SelfRef struct {
	Self *SelfRef `inject:""`
}

type LazyA struct {
	B Provider[*LazyB] `inject:""`
}

type LazyB struct {
	A *LazyA `inject:""`
}
