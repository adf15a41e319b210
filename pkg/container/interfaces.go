package container

import (
	"context"
	"reflect"
)

// ApplicationContext is a started container. It is safe for concurrent use.
type ApplicationContext interface {
	// ID returns the unique id of this context, also attached to its log lines
	ID() string
	// Lookup returns an instance of the bean matching t and every qualifier.
	// The result is always a pointer to the bean class.
	Lookup(t reflect.Type, qualifiers ...Qualifier) (any, error)
	// GetBeanDefinition returns the definition registered for a class, or nil
	GetBeanDefinition(class reflect.Type) *BeanDefinition
	// BeanDefinitions returns every definition in registration order
	BeanDefinitions() []*BeanDefinition
	// Properties returns the properties the context was started with
	Properties() *Properties
	// Metrics returns metrics for all beans, nil when metrics are disabled
	Metrics() map[string]*BeanMetrics
	// Stop runs PreDestroy on created singletons in reverse creation order.
	// Lookups fail with ContextStoppedError afterwards.
	Stop(ctx context.Context) error
}

// ContextBuilder is used during container initialization
type ContextBuilder interface {
	// Register adds classes to the container
	Register(classes ...*ClassRef)
	// AddModule queues a module. Modules are applied after every class
	// registered directly, in the order they were added.
	AddModule(module Module)
	// SetProperty sets a property, overriding loaded values
	SetProperty(name, value string)
	// Property returns a property set so far
	Property(name string) (string, bool)
}
