package container

import (
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

// BeanRegistry builds bean definitions and indexes them by declared type,
// by class and by qualifier.
type BeanRegistry interface {
	// CreateBean registers one class. Interfaces, abstract classes and annotation
	// types are not candidates: they yield a nil definition and no error.
	CreateBean(ref *ClassRef) (*BeanDefinition, error)
	// CreateBeans registers every candidate class.
	CreateBeans(refs ...*ClassRef) error
	// AddModule registers a named group of classes.
	AddModule(module Module) error
	// GetBoundClasses returns the classes bound to a declared type, in registration order.
	GetBoundClasses(t reflect.Type) []reflect.Type
	// GetQualifiers returns the qualifier set registered for a class.
	GetQualifiers(class reflect.Type) QualifierSet
	// GetBeanDefinition returns the definition of a class, or nil.
	GetBeanDefinition(class reflect.Type) *BeanDefinition
	// Definitions returns all definitions in registration order.
	Definitions() []*BeanDefinition
}

// defaultBeanRegistry implements BeanRegistry
type defaultBeanRegistry struct {
	mu sync.RWMutex

	definitions map[reflect.Type]*BeanDefinition
	problems    map[reflect.Type][]string
	order       []reflect.Type

	// declared type -> classes
	byType map[reflect.Type][]reflect.Type
	// class -> qualifiers
	byClass map[reflect.Type]QualifierSet
	// qualifier -> classes
	byQualifier map[Qualifier][]reflect.Type

	// interfaces that contribute declared types, in discovery order
	interfaces   []reflect.Type
	interfaceSet map[reflect.Type]bool
	// interfaces and abstract classes registered directly, with the registering module
	direct map[reflect.Type]string
	// abstract classes registered directly, in registration order
	abstracts []reflect.Type

	// interfaces first seen after sealing are matched on demand
	dynamic sync.Map
	sealed  bool

	properties   *Properties
	introspector *typeIntrospector
	logger       *slog.Logger
}

func newBeanRegistry(properties *Properties, logger *slog.Logger) *defaultBeanRegistry {
	if properties == nil {
		properties = NewProperties()
	}
	return &defaultBeanRegistry{
		definitions:  make(map[reflect.Type]*BeanDefinition),
		problems:     make(map[reflect.Type][]string),
		byType:       make(map[reflect.Type][]reflect.Type),
		byClass:      make(map[reflect.Type]QualifierSet),
		byQualifier:  make(map[Qualifier][]reflect.Type),
		interfaceSet: make(map[reflect.Type]bool),
		direct:       make(map[reflect.Type]string),
		properties:   properties,
		introspector: newTypeIntrospector(logger),
		logger:       logger,
	}
}

func (r *defaultBeanRegistry) CreateBean(ref *ClassRef) (*BeanDefinition, error) {
	return r.createBean(ref, "")
}

func (r *defaultBeanRegistry) createBean(ref *ClassRef, module string) (*BeanDefinition, error) {
	if ref == nil || ref.typ == nil {
		return nil, fmt.Errorf("cannot register nil class")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return nil, ConfigurationError(fmt.Sprintf("cannot register %s: registry is sealed", ref), nil)
	}

	if !isCandidate(ref) {
		switch {
		case ref.typ.Kind() == reflect.Interface:
			r.addInterface(ref.typ)
			if _, seen := r.direct[ref.typ]; !seen {
				r.direct[ref.typ] = module
			}
		case ref.abstract && ref.typ.Kind() == reflect.Struct:
			if _, seen := r.direct[ref.typ]; !seen {
				r.direct[ref.typ] = module
				r.abstracts = append(r.abstracts, ref.typ)
			}
		}
		r.logger.Debug("Skipping non-candidate class", "class", ref.String(), "kind", ref.typ.Kind().String())
		return nil, nil
	}

	class := ref.typ
	info := r.introspector.introspect(ref)

	for _, t := range info.implements {
		if t.Kind() == reflect.Interface {
			r.addInterface(t)
		}
	}
	for _, p := range info.points {
		if p.Type.Kind() == reflect.Interface {
			r.addInterface(p.Type)
		}
	}

	qualifiers := info.qualifiers
	order := len(r.order)
	if existing, ok := r.definitions[class]; ok {
		// re-registration merges qualifiers; Named replaces Named
		merged := existing.qualifiers.Clone()
		merged.AddAll(info.qualifiers)
		qualifiers = merged
		order = existing.order
		r.unindexQualifiers(class, existing.qualifiers)
		if module == "" {
			module = existing.module
		}
		r.logger.Debug("Updating bean definition", "class", class.String())
	} else {
		r.order = append(r.order, class)
	}

	def := &BeanDefinition{
		name:         beanName(class, qualifiers),
		class:        class,
		types:        []reflect.Type{class},
		qualifiers:   qualifiers,
		scope:        info.scope,
		stereotypes:  info.stereotypes,
		points:       info.points,
		module:       module,
		order:        order,
		constructor:  ref.constructor,
		initializers: ref.initializers,
		instance:     ref.instance,
	}

	r.definitions[class] = def
	r.problems[class] = append(info.problems, r.implementsProblems(class, info.implements)...)
	r.byClass[class] = qualifiers
	for _, q := range qualifiers.items {
		r.byQualifier[q] = append(r.byQualifier[q], class)
	}

	r.logger.Debug("Registering bean",
		"name", def.name,
		"class", class.String(),
		"scope", def.scope,
		"module", module)
	return def, nil
}

func (r *defaultBeanRegistry) CreateBeans(refs ...*ClassRef) error {
	for _, ref := range refs {
		if _, err := r.CreateBean(ref); err != nil {
			return err
		}
	}
	return nil
}

func (r *defaultBeanRegistry) AddModule(module Module) error {
	if module.Condition != nil && !module.Condition(r) {
		r.logger.Info("Skipping module, condition not met", "module", module.Name)
		return nil
	}

	classes := module.Classes
	if module.Configure != nil {
		configured, err := module.Configure(r)
		if err != nil {
			return fmt.Errorf("module %s: %w", module.Name, err)
		}
		classes = append(append([]*ClassRef(nil), classes...), configured...)
	}

	r.logger.Info("Adding module", "module", module.Name, "classes", len(classes))
	for _, ref := range classes {
		if _, err := r.createBean(ref, module.Name); err != nil {
			return fmt.Errorf("module %s: %w", module.Name, err)
		}
	}
	for _, nested := range module.Modules {
		if err := r.AddModule(nested); err != nil {
			return err
		}
	}
	return nil
}

// seal computes the declared-type index. No registration is accepted afterwards.
func (r *defaultBeanRegistry) seal() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, class := range r.order {
		def := r.definitions[class]
		types := []reflect.Type{class}
		ptr := reflect.PointerTo(class)
		for _, iface := range r.interfaces {
			if ptr.Implements(iface) {
				types = append(types, iface)
			}
		}
		def.types = types
		for _, t := range types {
			r.byType[t] = append(r.byType[t], class)
		}
	}
	r.sealed = true
}

func (r *defaultBeanRegistry) GetBoundClasses(t reflect.Type) []reflect.Type {
	t = normalizeType(t)

	r.mu.RLock()
	bound, known := r.byType[t]
	sealed := r.sealed
	r.mu.RUnlock()

	if !known && sealed && t != nil && t.Kind() == reflect.Interface {
		return r.dynamicBound(t)
	}
	out := make([]reflect.Type, len(bound))
	copy(out, bound)
	return out
}

func (r *defaultBeanRegistry) dynamicBound(iface reflect.Type) []reflect.Type {
	if cached, ok := r.dynamic.Load(iface); ok {
		return append([]reflect.Type(nil), cached.([]reflect.Type)...)
	}
	r.mu.RLock()
	var bound []reflect.Type
	for _, class := range r.order {
		if reflect.PointerTo(class).Implements(iface) {
			bound = append(bound, class)
		}
	}
	r.mu.RUnlock()
	r.dynamic.Store(iface, bound)
	return append([]reflect.Type(nil), bound...)
}

func (r *defaultBeanRegistry) GetQualifiers(class reflect.Type) QualifierSet {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byClass[normalizeType(class)].Clone()
}

// classesWithQualifier returns every class carrying q
func (r *defaultBeanRegistry) classesWithQualifier(q Qualifier) []reflect.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]reflect.Type(nil), r.byQualifier[q]...)
}

func (r *defaultBeanRegistry) GetBeanDefinition(class reflect.Type) *BeanDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.definitions[normalizeType(class)]
}

func (r *defaultBeanRegistry) Definitions() []*BeanDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*BeanDefinition, 0, len(r.order))
	for _, class := range r.order {
		result = append(result, r.definitions[class])
	}
	return result
}

// Property implements ConditionContext
func (r *defaultBeanRegistry) Property(name string) (string, bool) {
	return r.properties.Lookup(name)
}

// PropertiesWithPrefix implements ConditionContext
func (r *defaultBeanRegistry) PropertiesWithPrefix(prefix string) map[string]string {
	return r.properties.WithPrefix(prefix)
}

// HasClass implements ConditionContext. For interfaces it reports whether any
// registered class implements it.
func (r *defaultBeanRegistry) HasClass(t reflect.Type) bool {
	t = normalizeType(t)
	if t == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t.Kind() != reflect.Interface {
		_, ok := r.definitions[t]
		return ok
	}
	for _, class := range r.order {
		if reflect.PointerTo(class).Implements(t) {
			return true
		}
	}
	return false
}

// definitionProblems returns InvalidBeanDefinitionErrors for every malformed
// class, for interfaces registered directly that nothing implements and for
// abstract classes that no registered class embeds.
func (r *defaultBeanRegistry) definitionProblems() []error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for _, class := range r.order {
		for _, reason := range r.problems[class] {
			errs = append(errs, &InvalidBeanDefinitionError{Class: class, Reason: reason})
		}
	}
	for _, iface := range r.interfaces {
		module, direct := r.direct[iface]
		if !direct || len(r.byType[iface]) > 0 {
			continue
		}
		reason := "interface registered directly without concrete implementations"
		if module != "" {
			reason += " in module " + module
		}
		errs = append(errs, &InvalidBeanDefinitionError{Class: iface, Reason: reason})
	}
	for _, base := range r.abstracts {
		if r.embedded(base) {
			continue
		}
		reason := "abstract class registered directly without concrete implementations"
		if module := r.direct[base]; module != "" {
			reason += " in module " + module
		}
		errs = append(errs, &InvalidBeanDefinitionError{Class: base, Reason: reason})
	}
	return errs
}

// embedded reports whether some registered class embeds base at any depth.
func (r *defaultBeanRegistry) embedded(base reflect.Type) bool {
	for _, class := range r.order {
		if embeds(class, base) {
			return true
		}
	}
	return false
}

func embeds(class, base reflect.Type) bool {
	seen := map[reflect.Type]bool{class: true}
	queue := []reflect.Type{class}
	for len(queue) > 0 {
		t := queue[0]
		queue = queue[1:]
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.Anonymous {
				continue
			}
			ft := f.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft == base {
				return true
			}
			if ft.Kind() == reflect.Struct && !seen[ft] {
				seen[ft] = true
				queue = append(queue, ft)
			}
		}
	}
	return false
}

func (r *defaultBeanRegistry) addInterface(t reflect.Type) {
	if r.interfaceSet[t] {
		return
	}
	r.interfaceSet[t] = true
	r.interfaces = append(r.interfaces, t)
}

func (r *defaultBeanRegistry) unindexQualifiers(class reflect.Type, qualifiers QualifierSet) {
	for _, q := range qualifiers.items {
		classes := r.byQualifier[q]
		for i, c := range classes {
			if c == class {
				r.byQualifier[q] = append(classes[:i:i], classes[i+1:]...)
				break
			}
		}
		if len(r.byQualifier[q]) == 0 {
			delete(r.byQualifier, q)
		}
	}
}

func (r *defaultBeanRegistry) implementsProblems(class reflect.Type, declared []reflect.Type) []string {
	var problems []string
	for _, t := range declared {
		switch {
		case t.Kind() != reflect.Interface:
			problems = append(problems, fmt.Sprintf("declared type %s is not an interface", t))
		case !reflect.PointerTo(class).Implements(t):
			problems = append(problems, fmt.Sprintf("*%s does not implement declared type %s", class.Name(), t))
		}
	}
	return problems
}

// beanName is the Named value, or the class name with a lower-case first letter.
func beanName(class reflect.Type, qualifiers QualifierSet) string {
	if name, ok := qualifiers.Named(); ok {
		return name
	}
	name := class.Name()
	if i := strings.IndexByte(name, '['); i > 0 {
		name = name[:i]
	}
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return class.String()
	}
	return string(unicode.ToLower(r)) + name[size:]
}
