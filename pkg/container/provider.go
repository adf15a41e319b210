package container

import (
	"fmt"
	"reflect"
)

// Provider defers a lookup until Get is called. Injecting Provider[T] instead of T
// lets two beans depend on each other without a construction cycle.
//
//	type OrderService struct {
//	    Payments container.Provider[PaymentGateway] `inject:"Named=stripe"`
//	}
type Provider[T any] struct {
	lookup *lazyLookup
}

// lazyLookup owns the context handle and the required type and qualifiers,
// never an instance.
type lazyLookup struct {
	ctx        ApplicationContext
	typ        reflect.Type
	qualifiers QualifierSet
}

func (l *lazyLookup) get() (any, error) {
	return l.ctx.Lookup(l.typ, l.qualifiers.Slice()...)
}

// Get performs a full lookup of T. Singletons resolve to the same instance on
// every call, dependent beans to a fresh one.
func (p Provider[T]) Get() (T, error) {
	var zero T
	if p.lookup == nil {
		return zero, &ContainerError{
			Code:    CodeUnsatisfiedDependency,
			Message: fmt.Sprintf("provider of %s is not bound to an application context", reflect.TypeOf((*T)(nil)).Elem()),
		}
	}
	instance, err := p.lookup.get()
	if err != nil {
		return zero, err
	}
	typed, ok := instance.(T)
	if !ok {
		return zero, &TypeMismatchError{Expected: reflect.TypeOf((*T)(nil)).Elem().String(), Got: fmt.Sprintf("%T", instance)}
	}
	return typed, nil
}

// MustGet is like Get but panics on error
func (p Provider[T]) MustGet() T {
	v, err := p.Get()
	if err != nil {
		panic(err)
	}
	return v
}

// Bound reports whether the provider has been injected
func (p Provider[T]) Bound() bool {
	return p.lookup != nil
}

// providerBinder is implemented by *Provider[T] for every T.
type providerBinder interface {
	bindLookup(*lazyLookup)
	providedType() reflect.Type
}

func (p *Provider[T]) bindLookup(l *lazyLookup) { p.lookup = l }

func (p *Provider[T]) providedType() reflect.Type { return reflect.TypeOf((*T)(nil)).Elem() }

var providerBinderType = reflect.TypeOf((*providerBinder)(nil)).Elem()

// providedType returns T when t is Provider[T].
func providedType(t reflect.Type) (reflect.Type, bool) {
	if t.Kind() != reflect.Struct || !reflect.PointerTo(t).Implements(providerBinderType) {
		return nil, false
	}
	return reflect.New(t).Interface().(providerBinder).providedType(), true
}

// providerFactory builds provider values for provider injection points. Building
// a provider is cheap and never touches the resolver.
type providerFactory struct {
	ctx ApplicationContext
}

func (f *providerFactory) newProvider(point InjectionPoint) reflect.Value {
	v := reflect.New(point.rawType)
	v.Interface().(providerBinder).bindLookup(&lazyLookup{
		ctx:        f.ctx,
		typ:        point.Type,
		qualifiers: point.Qualifiers.Clone(),
	})
	return v.Elem()
}

// ProviderFor returns a provider of T bound to ctx
func ProviderFor[T any](ctx ApplicationContext, qualifiers ...Qualifier) Provider[T] {
	return Provider[T]{lookup: &lazyLookup{
		ctx:        ctx,
		typ:        normalizeType(reflect.TypeOf((*T)(nil)).Elem()),
		qualifiers: NewQualifierSet(qualifiers...),
	}}
}
