package container

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// singletonEntry holds the one instance of a singleton bean.
type singletonEntry struct {
	val atomic.Value // instance, nil until created
	mu  sync.Mutex   // serializes creation of this bean only
	// err pins the first failure when retries are disabled
	err error
}

// scopeManager returns instances according to bean scope. Singletons are
// created at most once per context; dependent beans on every call.
type scopeManager struct {
	resolver  *resolver
	providers *providerFactory
	chains    resolutionChains
	entries   sync.Map // *BeanDefinition -> *singletonEntry
	retry     bool

	// singletons in construction order, for PreDestroy
	createdMu sync.Mutex
	created   []*BeanDefinition

	metrics MetricsCollector
	logger  *slog.Logger
}

func newScopeManager(resolver *resolver, providers *providerFactory, retry bool, metrics MetricsCollector, logger *slog.Logger) *scopeManager {
	return &scopeManager{
		resolver:  resolver,
		providers: providers,
		retry:     retry,
		metrics:   metrics,
		logger:    logger,
	}
}

// get returns an instance of def, a non-nil *Class.
func (m *scopeManager) get(def *BeanDefinition) (any, error) {
	if def.scope == ScopeSingleton {
		return m.singleton(def)
	}
	return m.create(def)
}

func (m *scopeManager) entry(def *BeanDefinition) *singletonEntry {
	if e, ok := m.entries.Load(def); ok {
		return e.(*singletonEntry)
	}
	e, _ := m.entries.LoadOrStore(def, &singletonEntry{})
	return e.(*singletonEntry)
}

func (m *scopeManager) singleton(def *BeanDefinition) (any, error) {
	e := m.entry(def)

	// fast path
	if val := e.val.Load(); val != nil {
		return val, nil
	}

	// the lock is held for the whole construction, check re-entry first
	leave, err := m.chains.enter(def)
	if err != nil {
		return nil, err
	}
	defer leave()

	e.mu.Lock()
	defer e.mu.Unlock()

	if val := e.val.Load(); val != nil {
		return val, nil
	}
	if e.err != nil {
		return nil, e.err
	}

	var instance any
	if def.isInstance() {
		instance = def.instance
	} else {
		instance, err = m.construct(def)
		if err != nil {
			if !m.retry {
				e.err = err
			}
			return nil, err
		}
	}

	e.val.Store(instance)
	m.createdMu.Lock()
	m.created = append(m.created, def)
	m.createdMu.Unlock()
	return instance, nil
}

func (m *scopeManager) create(def *BeanDefinition) (any, error) {
	leave, err := m.chains.enter(def)
	if err != nil {
		return nil, err
	}
	defer leave()
	return m.construct(def)
}

// construct runs the full creation sequence: constructor or zero value, field
// injection, initializer methods, PostConstruct.
func (m *scopeManager) construct(def *BeanDefinition) (instance any, err error) {
	start := time.Now()
	m.logger.Debug("Creating bean", "name", def.name, "scope", def.scope)

	defer func() {
		if r := recover(); r != nil {
			instance = nil
			err = &InstantiationError{Bean: def, Cause: fmt.Errorf("panic: %v", r)}
		}
		if err != nil {
			m.logger.Debug("Bean creation failed", "name", def.name, "error", err)
			return
		}
		duration := time.Since(start)
		m.metrics.RecordInitDuration(def.name, duration)
		m.logger.Debug("Bean created", "name", def.name, "time_ms", duration.Milliseconds())
	}()

	ptr, err := m.newInstance(def)
	if err != nil {
		return nil, err
	}

	elem := ptr.Elem()
	for _, p := range def.points {
		if p.Kind != FieldInjection {
			continue
		}
		value, err := m.valueFor(p)
		if err != nil {
			return nil, err
		}
		accessible(elem.FieldByIndex(p.fieldIndex)).Set(value)
	}

	for _, init := range def.initializers {
		if err := m.callInitializer(def, ptr, init.method); err != nil {
			return nil, err
		}
	}

	instance = ptr.Interface()
	if pc, ok := instance.(PostConstructor); ok {
		if err := pc.PostConstruct(); err != nil {
			return nil, &InstantiationError{Bean: def, Cause: fmt.Errorf("post construct: %w", err)}
		}
	}
	return instance, nil
}

func (m *scopeManager) newInstance(def *BeanDefinition) (reflect.Value, error) {
	if def.constructor == nil {
		return reflect.New(def.class), nil
	}

	args, err := m.arguments(def, ConstructorInjection, "")
	if err != nil {
		return reflect.Value{}, err
	}
	out := def.constructor.fn.Call(args)
	if len(out) == 2 && !out[1].IsNil() {
		return reflect.Value{}, &InstantiationError{Bean: def, Cause: out[1].Interface().(error)}
	}
	if out[0].IsNil() {
		return reflect.Value{}, &InstantiationError{Bean: def, Cause: errors.New("constructor returned nil")}
	}
	return out[0], nil
}

func (m *scopeManager) callInitializer(def *BeanDefinition, ptr reflect.Value, method string) error {
	args, err := m.arguments(def, InitializerInjection, method)
	if err != nil {
		return err
	}
	out := ptr.MethodByName(method).Call(args)
	if len(out) == 1 && !out[0].IsNil() {
		return &InstantiationError{Bean: def, Cause: fmt.Errorf("initializer %s: %w", method, out[0].Interface().(error))}
	}
	return nil
}

// arguments resolves the parameters of the constructor or of one initializer method
func (m *scopeManager) arguments(def *BeanDefinition, kind InjectionKind, method string) ([]reflect.Value, error) {
	var points []InjectionPoint
	for _, p := range def.points {
		if p.Kind == kind && p.Name == method {
			points = append(points, p)
		}
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Index < points[j].Index })

	args := make([]reflect.Value, len(points))
	for i, p := range points {
		value, err := m.valueFor(p)
		if err != nil {
			return nil, err
		}
		args[i] = value
	}
	return args, nil
}

// valueFor resolves one injection point to a value assignable to its raw type.
func (m *scopeManager) valueFor(p InjectionPoint) (reflect.Value, error) {
	if p.Provider {
		return m.providers.newProvider(p), nil
	}
	def, err := m.resolver.resolve(p.Type, p.Qualifiers)
	if err != nil {
		return reflect.Value{}, err
	}
	instance, err := m.get(def)
	if err != nil {
		return reflect.Value{}, err
	}
	value := reflect.ValueOf(instance)
	if !value.Type().AssignableTo(p.rawType) {
		return reflect.Value{}, &TypeMismatchError{Expected: p.rawType.String(), Got: value.Type().String()}
	}
	return value, nil
}

// createdSingletons returns the constructed singletons in construction order
func (m *scopeManager) createdSingletons() []*BeanDefinition {
	m.createdMu.Lock()
	defer m.createdMu.Unlock()
	return append([]*BeanDefinition(nil), m.created...)
}

// instanceOf returns the cached singleton instance, or nil
func (m *scopeManager) instanceOf(def *BeanDefinition) any {
	if e, ok := m.entries.Load(def); ok {
		return e.(*singletonEntry).val.Load()
	}
	return nil
}

// clear drops every cached instance
func (m *scopeManager) clear() {
	m.entries.Range(func(key, _ any) bool {
		m.entries.Delete(key)
		return true
	})
	m.createdMu.Lock()
	m.created = nil
	m.createdMu.Unlock()
}
