package starter

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/01fortes/gocdi/pkg/container"
)

type poolProperties struct {
	URL      string        `yaml:"url"`
	MaxConns int           `yaml:"max_conns"`
	Timeout  time.Duration `yaml:"timeout"`
	Debug    bool          `yaml:"debug"`
	Hosts    []string      `yaml:"hosts"`
	Retry    struct {
		Attempts int     `yaml:"attempts"`
		Backoff  float64 `yaml:"backoff"`
	} `yaml:"retry"`
}

type pool struct {
	props *poolProperties
}

type poolUser struct {
	Props *poolProperties `inject:""`
	Pool  *pool           `inject:""`
}

func TestBind(t *testing.T) {
	var p poolProperties
	err := Bind(map[string]string{
		"url":            "postgres://db",
		"max_conns":      "25",
		"timeout":        "5s",
		"debug":          "true",
		"hosts.1":        "b",
		"hosts.0":        "a",
		"retry.attempts": "3",
		"retry.backoff":  "1.5",
		"unknown":        "ignored",
	}, &p)
	require.NoError(t, err)

	assert.Equal(t, "postgres://db", p.URL)
	assert.Equal(t, 25, p.MaxConns)
	assert.Equal(t, 5*time.Second, p.Timeout)
	assert.True(t, p.Debug)
	assert.Equal(t, []string{"a", "b"}, p.Hosts)
	assert.Equal(t, 3, p.Retry.Attempts)
	assert.InDelta(t, 1.5, p.Retry.Backoff, 0.0001)
}

func TestBindErrors(t *testing.T) {
	var p poolProperties
	require.NoError(t, Bind(nil, &p))
	assert.Zero(t, p.MaxConns)

	err := Bind(map[string]string{"max_conns": "many"}, &p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error decoding properties")
}

func TestSequenceIndexes(t *testing.T) {
	idx, ok := sequenceIndexes([]string{"2", "0", "1"})
	require.True(t, ok)
	assert.Equal(t, []int{0, 1, 2}, idx)

	_, ok = sequenceIndexes([]string{"0", "2"})
	assert.False(t, ok)
	_, ok = sequenceIndexes([]string{"0", "01"})
	assert.False(t, ok)
	_, ok = sequenceIndexes([]string{"0", "name"})
	assert.False(t, ok)
}

func TestIsSensitive(t *testing.T) {
	assert.True(t, isSensitive("password"))
	assert.True(t, isSensitive("client_secret"))
	assert.True(t, isSensitive("Auth.Token"))
	assert.True(t, isSensitive("api_key"))
	assert.False(t, isSensitive("public_key"))
	assert.False(t, isSensitive("url"))
}

func startWith(t *testing.T, props map[string]string, modules ...container.Module) (container.ApplicationContext, error) {
	t.Helper()
	cfg := container.DefaultConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg.PropertyLoaders = nil
	ctx, err := container.StartWithConfig(cfg, func(b container.ContextBuilder) {
		for k, v := range props {
			b.SetProperty(k, v)
		}
		for _, m := range modules {
			b.AddModule(m)
		}
		b.Register(container.Class[poolUser]())
	})
	if err == nil {
		t.Cleanup(func() { _ = ctx.Stop(context.Background()) })
	}
	return ctx, err
}

func poolModule() AutoModule[poolProperties] {
	return AutoModule[poolProperties]{
		Name:   "pool",
		Prefix: "db",
		Configure: func(p *poolProperties) ([]*container.ClassRef, error) {
			if p.URL == "" {
				return nil, errors.New("db.url is required")
			}
			return []*container.ClassRef{container.Instance(&pool{props: p})}, nil
		},
	}
}

func TestAutoModule(t *testing.T) {
	ctx, err := startWith(t, map[string]string{
		"db.url":       "postgres://db",
		"db.max_conns": "10",
		"db.password":  "hunter2",
	}, poolModule().Module())
	require.NoError(t, err)

	user, err := container.Lookup[*poolUser](ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, user.Props.MaxConns)
	assert.Same(t, user.Props, user.Pool.props)

	def := ctx.GetBeanDefinition(container.TypeOf[poolProperties]())
	require.NotNil(t, def)
	assert.Equal(t, "pool", def.Module())
	assert.Equal(t, container.ScopeSingleton, def.Scope())
}

func TestAutoModuleDisabled(t *testing.T) {
	_, err := startWith(t, map[string]string{
		"db.url":     "postgres://db",
		"db.enabled": "false",
	}, poolModule().Module())

	// poolUser is left without its dependencies
	var unsatisfied *container.UnsatisfiedDependencyError
	assert.ErrorAs(t, err, &unsatisfied)
}

func TestAutoModuleConfigureError(t *testing.T) {
	_, err := startWith(t, nil, poolModule().Module())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db.url is required")
}

func TestAutoModuleBindError(t *testing.T) {
	_, err := startWith(t, map[string]string{"db.max_conns": "lots"}, poolModule().Module())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "binding db properties")
}

func TestEnabledByDefault(t *testing.T) {
	props := container.NewProperties()
	probe := propertyProbe{props}
	cond := EnabledByDefault("cache")

	assert.True(t, cond(probe))
	props.Set("cache.enabled", "true")
	assert.True(t, cond(probe))
	props.Set("cache.enabled", "maybe")
	assert.True(t, cond(probe), "unparseable leaves it enabled")
	props.Set("cache.enabled", "false")
	assert.False(t, cond(probe))
}

type propertyProbe struct {
	props *container.Properties
}

func (p propertyProbe) Property(name string) (string, bool) { return p.props.Lookup(name) }

func (p propertyProbe) PropertiesWithPrefix(prefix string) map[string]string {
	return p.props.WithPrefix(prefix)
}

func (p propertyProbe) HasClass(reflect.Type) bool { return false }
