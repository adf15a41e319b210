package container

import (
	"fmt"
	"reflect"
)

// InjectionKind tells where an injection point lives
type InjectionKind int

const (
	// FieldInjection is a struct field tagged with `inject`
	FieldInjection InjectionKind = iota
	// ConstructorInjection is a parameter of the class constructor
	ConstructorInjection
	// InitializerInjection is a parameter of an initializer method
	InitializerInjection
)

func (k InjectionKind) String() string {
	switch k {
	case FieldInjection:
		return "field"
	case ConstructorInjection:
		return "constructor parameter"
	case InitializerInjection:
		return "initializer parameter"
	}
	return "unknown"
}

// InjectionPoint is a field or parameter the container fills with a resolved bean.
type InjectionPoint struct {
	Kind InjectionKind
	// Name is the field name, or the method name for initializer parameters.
	Name string
	// Index is the parameter position for constructor and initializer parameters.
	Index int
	// Type is the required type. For providers it is the provided type.
	Type       reflect.Type
	Qualifiers QualifierSet
	// Provider is set when the point is a Provider[T] and construction is deferred.
	Provider bool

	rawType    reflect.Type
	fieldIndex []int
	exported   bool
}

func (p InjectionPoint) String() string {
	switch p.Kind {
	case FieldInjection:
		return "field " + p.Name
	case ConstructorInjection:
		return fmt.Sprintf("constructor parameter #%d", p.Index)
	default:
		return fmt.Sprintf("%s parameter #%d", p.Name, p.Index)
	}
}

// BeanDefinition is the registered description of a bean. It is immutable once
// the context has started.
type BeanDefinition struct {
	name        string
	class       reflect.Type
	types       []reflect.Type
	qualifiers  QualifierSet
	scope       Scope
	stereotypes []string
	points      []InjectionPoint
	module      string
	order       int

	constructor  *constructorSpec
	initializers []initializerSpec
	instance     any
}

// Name returns the bean name
func (d *BeanDefinition) Name() string { return d.name }

// Class returns the concrete class. Instances have type *Class().
func (d *BeanDefinition) Class() reflect.Type { return d.class }

// Types returns the declared types the bean satisfies, the class first
func (d *BeanDefinition) Types() []reflect.Type {
	out := make([]reflect.Type, len(d.types))
	copy(out, d.types)
	return out
}

// Qualifiers returns a copy of the bean's qualifier set
func (d *BeanDefinition) Qualifiers() QualifierSet { return d.qualifiers.Clone() }

// Scope returns the bean scope
func (d *BeanDefinition) Scope() Scope { return d.scope }

// Stereotypes returns the names of the applied stereotypes
func (d *BeanDefinition) Stereotypes() []string {
	out := make([]string, len(d.stereotypes))
	copy(out, d.stereotypes)
	return out
}

// InjectionPoints returns the bean's injection points: constructor parameters,
// then fields, then initializer parameters
func (d *BeanDefinition) InjectionPoints() []InjectionPoint {
	out := make([]InjectionPoint, len(d.points))
	copy(out, d.points)
	return out
}

// Module returns the name of the module that registered the bean, if any
func (d *BeanDefinition) Module() string { return d.module }

// HasType reports whether t is one of the declared types
func (d *BeanDefinition) HasType(t reflect.Type) bool {
	for _, dt := range d.types {
		if dt == t {
			return true
		}
	}
	return false
}

func (d *BeanDefinition) String() string {
	return d.name + " (" + typeName(d.class) + ")"
}

func (d *BeanDefinition) isInstance() bool {
	return d.instance != nil
}
