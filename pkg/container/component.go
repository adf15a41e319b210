package container

import (
	"context"
	"reflect"
)

// PostConstructor is implemented by beans that need a callback once every
// injection point has been filled.
type PostConstructor interface {
	PostConstruct() error
}

// PreDestroyer is implemented by singleton beans that release resources when
// the context stops.
type PreDestroyer interface {
	PreDestroy(ctx context.Context) error
}

// ClassRef describes a candidate class: the Go type plus the metadata that
// annotations would carry (name, qualifiers, scope, stereotypes, constructor).
type ClassRef struct {
	typ          reflect.Type
	name         string
	qualifiers   []Qualifier
	scope        Scope
	stereotypes  []Stereotype
	implements   []reflect.Type
	abstract     bool
	constructor  *constructorSpec
	initializers []initializerSpec
	instance     any
	problems     []string
}

type constructorSpec struct {
	fn     reflect.Value
	params []Param
}

type initializerSpec struct {
	method string
	params []Param
}

// Param carries the qualifiers of one constructor or initializer parameter.
type Param struct {
	Qualifiers []Qualifier
}

// Qualified builds a Param requiring the given qualifiers
func Qualified(qualifiers ...Qualifier) Param {
	return Param{Qualifiers: qualifiers}
}

// ClassOption customizes a ClassRef
type ClassOption func(*ClassRef)

// Class returns the descriptor for T. T is a struct (or pointer to struct) for
// bean candidates, or an interface type to declare an injection target.
func Class[T any](opts ...ClassOption) *ClassRef {
	return ClassOf(reflect.TypeOf((*T)(nil)).Elem(), opts...)
}

// ClassOf is the non-generic form of Class
func ClassOf(t reflect.Type, opts ...ClassOption) *ClassRef {
	ref := &ClassRef{typ: normalizeType(t)}
	for _, opt := range opts {
		opt(ref)
	}
	return ref
}

// Instance registers a pre-built value as a singleton bean. value must be a
// non-nil pointer to a struct.
func Instance(value any, opts ...ClassOption) *ClassRef {
	t := reflect.TypeOf(value)
	ref := &ClassRef{typ: normalizeType(t), instance: value}
	if t == nil || t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct || reflect.ValueOf(value).IsNil() {
		ref.problems = append(ref.problems, "instance must be a non-nil pointer to a struct")
	}
	for _, opt := range opts {
		opt(ref)
	}
	ref.scope = ScopeSingleton
	return ref
}

// Type returns the class type
func (r *ClassRef) Type() reflect.Type {
	return r.typ
}

func (r *ClassRef) String() string {
	return typeName(r.typ)
}

// WithName sets the bean name and adds the matching Named qualifier
func WithName(name string) ClassOption {
	return func(r *ClassRef) {
		if r.name != "" && r.name != name {
			r.problems = append(r.problems, "conflicting Named qualifiers "+r.name+" and "+name)
		}
		r.name = name
		r.qualifiers = append(r.qualifiers, Named(name))
	}
}

// WithQualifiers adds class-level qualifiers
func WithQualifiers(qualifiers ...Qualifier) ClassOption {
	return func(r *ClassRef) {
		for _, q := range qualifiers {
			if q.IsNamed() {
				WithName(q.Value)(r)
				continue
			}
			r.qualifiers = append(r.qualifiers, q)
		}
	}
}

// WithScope sets an explicit scope, overriding stereotype defaults
func WithScope(scope Scope) ClassOption {
	return func(r *ClassRef) {
		if !scope.valid() {
			r.problems = append(r.problems, "unknown scope "+string(scope))
			return
		}
		r.scope = scope
	}
}

// WithStereotypes applies stereotypes to the class
func WithStereotypes(stereotypes ...Stereotype) ClassOption {
	return func(r *ClassRef) {
		r.stereotypes = append(r.stereotypes, stereotypes...)
	}
}

// Implements declares I as a type the class satisfies
func Implements[I any]() ClassOption {
	return func(r *ClassRef) {
		r.implements = append(r.implements, reflect.TypeOf((*I)(nil)).Elem())
	}
}

// Abstract marks the class as a base meant for embedding. Abstract classes are not bean candidates.
func Abstract() ClassOption {
	return func(r *ClassRef) {
		r.abstract = true
	}
}

// WithConstructor sets the function used to create instances. fn has the form
// func(deps...) *T or func(deps...) (*T, error); each parameter is an injection point.
func WithConstructor(fn any, params ...Param) ClassOption {
	return func(r *ClassRef) {
		r.constructor = &constructorSpec{fn: reflect.ValueOf(fn), params: params}
	}
}

// WithInitializer names a method on *T that is called with injected arguments
// after field injection.
func WithInitializer(method string, params ...Param) ClassOption {
	return func(r *ClassRef) {
		r.initializers = append(r.initializers, initializerSpec{method: method, params: params})
	}
}

// normalizeType maps *T to T for struct types so both forms name the same class.
func normalizeType(t reflect.Type) reflect.Type {
	if t != nil && t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct {
		return t.Elem()
	}
	return t
}
