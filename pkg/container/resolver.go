package container

import (
	"context"
	"log/slog"
	"reflect"
)

// resolver picks the bean definition for a required type and qualifier set.
// It never instantiates anything, so the validator uses it for dry runs.
type resolver struct {
	registry *defaultBeanRegistry
	// strict turns several qualifier matches into an AmbiguousResolutionError
	// instead of picking the first one in registration order.
	strict bool
	logger *slog.Logger
}

func newResolver(registry *defaultBeanRegistry, strict bool, logger *slog.Logger) *resolver {
	return &resolver{registry: registry, strict: strict, logger: logger}
}

func (r *resolver) resolve(t reflect.Type, qualifiers QualifierSet) (*BeanDefinition, error) {
	t = normalizeType(t)
	if t == nil {
		return nil, &UnsatisfiedDependencyError{Type: t, Qualifiers: qualifiers}
	}

	if qualifiers.Len() == 0 {
		return r.resolveUnqualified(t)
	}
	return r.resolveQualified(t, qualifiers)
}

func (r *resolver) resolveUnqualified(t reflect.Type) (*BeanDefinition, error) {
	switch t.Kind() {
	case reflect.Struct:
		def := r.registry.GetBeanDefinition(t)
		if def == nil {
			return nil, &UnsatisfiedDependencyError{Type: t}
		}
		return def, nil
	case reflect.Interface:
		bound := r.registry.GetBoundClasses(t)
		switch len(bound) {
		case 0:
			return nil, &UnsatisfiedDependencyError{Type: t}
		case 1:
			return r.registry.GetBeanDefinition(bound[0]), nil
		default:
			return nil, &AmbiguousResolutionError{Type: t, Candidates: bound}
		}
	}
	return nil, &UnsatisfiedDependencyError{Type: t}
}

func (r *resolver) resolveQualified(t reflect.Type, qualifiers QualifierSet) (*BeanDefinition, error) {
	// quick reject through the qualifier index
	for _, q := range qualifiers.items {
		if len(r.registry.classesWithQualifier(q)) == 0 {
			return nil, &UnsatisfiedDependencyError{Type: t, Qualifiers: qualifiers}
		}
	}

	var matches []reflect.Type
	for _, class := range r.registry.GetBoundClasses(t) {
		if !r.registry.GetQualifiers(class).ContainsAll(qualifiers) {
			continue
		}
		matches = append(matches, class)
		if !r.strict {
			break
		}
	}

	switch {
	case len(matches) == 0:
		return nil, &UnsatisfiedDependencyError{Type: t, Qualifiers: qualifiers}
	case len(matches) > 1:
		return nil, &AmbiguousResolutionError{Type: t, Qualifiers: qualifiers, Candidates: matches}
	}

	if !r.strict {
		r.warnOnTie(t, qualifiers, matches[0])
	}
	return r.registry.GetBeanDefinition(matches[0]), nil
}

// warnOnTie logs when lenient matching hid other candidates.
func (r *resolver) warnOnTie(t reflect.Type, qualifiers QualifierSet, chosen reflect.Type) {
	if !r.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	others := 0
	for _, class := range r.registry.GetBoundClasses(t) {
		if class != chosen && r.registry.GetQualifiers(class).ContainsAll(qualifiers) {
			others++
		}
	}
	if others > 0 {
		r.logger.Debug("Several beans match qualifiers, using first registered",
			"type", t.String(),
			"qualifiers", qualifiers.String(),
			"chosen", chosen.String(),
			"others", others)
	}
}
