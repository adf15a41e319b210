package container

import (
	"fmt"
	"log/slog"
	"reflect"
	"unsafe"
)

const injectTag = "inject"

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// classInfo is everything the introspector extracts from a ClassRef.
type classInfo struct {
	qualifiers  QualifierSet
	scope       Scope
	stereotypes []string
	implements  []reflect.Type
	points      []InjectionPoint
	// problems are reported as InvalidBeanDefinitionError by the validator.
	problems []string
}

// typeIntrospector reads injection metadata off a class descriptor and its struct tags.
type typeIntrospector struct {
	logger *slog.Logger
}

func newTypeIntrospector(logger *slog.Logger) *typeIntrospector {
	return &typeIntrospector{logger: logger}
}

func (ti *typeIntrospector) introspect(ref *ClassRef) classInfo {
	info := classInfo{
		implements: ref.implements,
		problems:   append([]string(nil), ref.problems...),
	}

	for _, st := range ref.stereotypes {
		info.stereotypes = append(info.stereotypes, st.Name)
		for _, q := range st.Qualifiers {
			info.qualifiers.Add(q)
		}
	}
	for _, q := range ref.qualifiers {
		info.qualifiers.Add(q)
	}

	info.scope = ti.scopeOf(ref, &info)

	if ref.instance != nil {
		// pre-built instances are never injected
		return info
	}

	if ref.constructor != nil {
		info.points = append(info.points, ti.constructorPoints(ref, &info)...)
	}
	info.points = append(info.points, ti.fieldPoints(ref.typ, &info)...)
	for _, init := range ref.initializers {
		info.points = append(info.points, ti.initializerPoints(ref.typ, init, &info)...)
	}

	ti.logger.Debug("Introspected class",
		"class", ref.typ.String(),
		"scope", info.scope,
		"qualifiers", info.qualifiers.String(),
		"injection_points", len(info.points))

	return info
}

func (ti *typeIntrospector) scopeOf(ref *ClassRef, info *classInfo) Scope {
	if ref.scope != "" {
		return ref.scope
	}
	var implied Scope
	for _, st := range ref.stereotypes {
		if st.Scope == "" {
			continue
		}
		if implied != "" && implied != st.Scope {
			info.problems = append(info.problems,
				fmt.Sprintf("stereotypes imply conflicting scopes %s and %s", implied, st.Scope))
			continue
		}
		implied = st.Scope
	}
	if implied != "" {
		return implied
	}
	return ScopeDependent
}

func (ti *typeIntrospector) constructorPoints(ref *ClassRef, info *classInfo) []InjectionPoint {
	fn := ref.constructor.fn
	if !fn.IsValid() || fn.Kind() != reflect.Func || fn.IsNil() {
		info.problems = append(info.problems, "constructor is not a function")
		return nil
	}
	ft := fn.Type()
	if ft.IsVariadic() {
		info.problems = append(info.problems, "constructor must not be variadic")
		return nil
	}
	if ft.NumOut() < 1 || ft.NumOut() > 2 || ft.Out(0) != reflect.PointerTo(ref.typ) ||
		(ft.NumOut() == 2 && ft.Out(1) != errorType) {
		info.problems = append(info.problems,
			fmt.Sprintf("constructor %s must return *%s or (*%s, error)", ft, ref.typ.Name(), ref.typ.Name()))
		return nil
	}
	if len(ref.constructor.params) > ft.NumIn() {
		info.problems = append(info.problems, "more parameter qualifiers than constructor parameters")
	}
	points := make([]InjectionPoint, 0, ft.NumIn())
	for i := 0; i < ft.NumIn(); i++ {
		var qualifiers QualifierSet
		if i < len(ref.constructor.params) {
			qualifiers = NewQualifierSet(ref.constructor.params[i].Qualifiers...)
		}
		p, err := newInjectionPoint(ConstructorInjection, "", i, ft.In(i), qualifiers)
		if err != nil {
			info.problems = append(info.problems, err.Error())
			continue
		}
		points = append(points, p)
	}
	return points
}

type embeddedLevel struct {
	typ   reflect.Type
	index []int
}

// fieldPoints walks the struct and its embedded structs breadth first. A name
// seen at a shallower depth hides deeper fields of the same name.
func (ti *typeIntrospector) fieldPoints(class reflect.Type, info *classInfo) []InjectionPoint {
	var points []InjectionPoint
	hidden := make(map[string]bool)
	level := []embeddedLevel{{typ: class}}

	for len(level) > 0 {
		type candidate struct {
			field reflect.StructField
			index []int
		}
		var candidates []candidate
		var next []embeddedLevel
		counts := make(map[string]int)
		reported := make(map[string]bool)

		for _, l := range level {
			for i := 0; i < l.typ.NumField(); i++ {
				f := l.typ.Field(i)
				if hidden[f.Name] {
					continue
				}
				index := append(append([]int(nil), l.index...), i)
				counts[f.Name]++
				candidates = append(candidates, candidate{field: f, index: index})

				_, tagged := f.Tag.Lookup(injectTag)
				if f.Anonymous && !tagged && f.Type.Kind() == reflect.Struct {
					next = append(next, embeddedLevel{typ: f.Type, index: index})
				}
			}
		}

		for _, c := range candidates {
			tag, ok := c.field.Tag.Lookup(injectTag)
			if !ok {
				continue
			}
			if counts[c.field.Name] > 1 {
				if !reported[c.field.Name] {
					reported[c.field.Name] = true
					info.problems = append(info.problems,
						fmt.Sprintf("field %s is declared more than once at the same embedding depth", c.field.Name))
				}
				continue
			}
			qualifiers, err := parseQualifierTag(tag)
			if err != nil {
				info.problems = append(info.problems, fmt.Sprintf("field %s: %v", c.field.Name, err))
				continue
			}
			p, err := newInjectionPoint(FieldInjection, c.field.Name, 0, c.field.Type, qualifiers)
			if err != nil {
				info.problems = append(info.problems, err.Error())
				continue
			}
			p.fieldIndex = c.index
			p.exported = c.field.IsExported()
			points = append(points, p)
		}

		for name := range counts {
			hidden[name] = true
		}
		level = next
	}
	return points
}

func (ti *typeIntrospector) initializerPoints(class reflect.Type, init initializerSpec, info *classInfo) []InjectionPoint {
	m, ok := reflect.PointerTo(class).MethodByName(init.method)
	if !ok {
		info.problems = append(info.problems, "initializer method "+init.method+" not found on *"+class.Name())
		return nil
	}
	mt := m.Type
	if mt.IsVariadic() || mt.NumOut() > 1 || (mt.NumOut() == 1 && mt.Out(0) != errorType) {
		info.problems = append(info.problems, "initializer method "+init.method+" must be non-variadic and return nothing or error")
		return nil
	}
	var points []InjectionPoint
	// In(0) is the receiver
	for i := 1; i < mt.NumIn(); i++ {
		var qualifiers QualifierSet
		if i-1 < len(init.params) {
			qualifiers = NewQualifierSet(init.params[i-1].Qualifiers...)
		}
		p, err := newInjectionPoint(InitializerInjection, init.method, i-1, mt.In(i), qualifiers)
		if err != nil {
			info.problems = append(info.problems, err.Error())
			continue
		}
		points = append(points, p)
	}
	return points
}

func newInjectionPoint(kind InjectionKind, name string, index int, raw reflect.Type, qualifiers QualifierSet) (InjectionPoint, error) {
	p := InjectionPoint{
		Kind:       kind,
		Name:       name,
		Index:      index,
		Qualifiers: qualifiers,
		rawType:    raw,
		exported:   true,
	}
	required := raw
	if provided, ok := providedType(raw); ok {
		p.Provider = true
		required = provided
	}
	if !injectable(required) {
		return p, fmt.Errorf("%s has type %s; only interfaces and pointers to structs can be injected", p, raw)
	}
	p.Type = normalizeType(required)
	return p, nil
}

func injectable(t reflect.Type) bool {
	if t.Kind() == reflect.Interface {
		return true
	}
	return t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct
}

// isCandidate reports whether a class may become a bean
func isCandidate(ref *ClassRef) bool {
	t := ref.typ
	if t == nil || ref.abstract || isAnnotation(t) {
		return false
	}
	return t.Kind() == reflect.Struct
}

func isAnnotation(t reflect.Type) bool {
	switch t {
	case reflect.TypeOf((*Qualifier)(nil)).Elem(), reflect.TypeOf((*Stereotype)(nil)).Elem(), reflect.TypeOf((*Scope)(nil)).Elem():
		return true
	}
	annotation := reflect.TypeOf((*Annotation)(nil)).Elem()
	return t.Implements(annotation) || reflect.PointerTo(t).Implements(annotation)
}

// accessible returns a settable view of a field, unexported ones included.
func accessible(v reflect.Value) reflect.Value {
	if v.CanSet() {
		return v
	}
	return reflect.NewAt(v.Type(), unsafe.Pointer(v.UnsafeAddr())).Elem()
}
