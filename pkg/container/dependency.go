package container

import (
	"log/slog"
	"time"
)

// GraphValidator checks the whole bean graph once, before the context is ready.
type GraphValidator interface {
	// Validate dry-runs every injection point and looks for cycles.
	Validate() error
	// GetDependencies returns the direct, non-provider dependencies of a bean.
	GetDependencies(def *BeanDefinition) []*BeanDefinition
}

// defaultGraphValidator implements GraphValidator
type defaultGraphValidator struct {
	registry *defaultBeanRegistry
	resolver *resolver
	// bean -> beans it needs at construction time; provider edges are left out
	dependencies map[*BeanDefinition][]*BeanDefinition
	metrics      MetricsCollector
	logger       *slog.Logger
}

func newGraphValidator(registry *defaultBeanRegistry, resolver *resolver, metrics MetricsCollector, logger *slog.Logger) *defaultGraphValidator {
	return &defaultGraphValidator{
		registry:     registry,
		resolver:     resolver,
		dependencies: make(map[*BeanDefinition][]*BeanDefinition),
		metrics:      metrics,
		logger:       logger,
	}
}

func (v *defaultGraphValidator) Validate() error {
	start := time.Now()
	v.logger.Info("Validating bean graph")

	errs := v.registry.definitionProblems()
	definitions := v.registry.Definitions()

	for _, def := range definitions {
		var deps []*BeanDefinition
		for _, point := range def.points {
			target, err := v.resolver.resolve(point.Type, point.Qualifiers)
			if err != nil {
				errs = append(errs, atInjectionPoint(err, def, point))
				continue
			}
			v.logger.Debug("Bean dependency resolved",
				"bean", def.name,
				"point", point.String(),
				"depends_on", target.name,
				"provider", point.Provider)
			if point.Provider {
				continue
			}
			deps = append(deps, target)
		}
		v.dependencies[def] = deps
		v.metrics.RecordDependencyCount(def.name, len(def.points))
	}

	errs = append(errs, v.detectCycles(definitions)...)

	if len(errs) > 0 {
		v.logger.Error("Bean graph validation failed", "problems", len(errs))
		return &ValidationError{Errors: errs}
	}

	v.logger.Info("Bean graph validated",
		"beans", len(definitions),
		"time_ms", time.Since(start).Milliseconds())
	return nil
}

// detectCycles runs a depth-first search from every bean in registration order
// and reports each back edge as a cycle.
func (v *defaultGraphValidator) detectCycles(definitions []*BeanDefinition) []error {
	const (
		unvisited = iota
		onPath
		done
	)
	state := make(map[*BeanDefinition]int, len(definitions))
	reported := make(map[string]bool)
	var errs []error

	var visit func(def *BeanDefinition, path []*BeanDefinition)
	visit = func(def *BeanDefinition, path []*BeanDefinition) {
		state[def] = onPath
		path = append(path, def)

		for _, dep := range v.dependencies[def] {
			switch state[dep] {
			case onPath:
				cycle := cycleFrom(path, dep)
				if key := cycleKey(cycle); !reported[key] {
					reported[key] = true
					errs = append(errs, &CircularDependencyError{Cycle: cycle})
				}
			case unvisited:
				visit(dep, path)
			}
		}
		state[def] = done
	}

	for _, def := range definitions {
		if state[def] == unvisited {
			visit(def, nil)
		}
	}
	return errs
}

func (v *defaultGraphValidator) GetDependencies(def *BeanDefinition) []*BeanDefinition {
	deps := v.dependencies[def]
	result := make([]*BeanDefinition, len(deps))
	copy(result, deps)
	return result
}

// cycleFrom returns the bean names from target to the end of path, closed with target.
func cycleFrom(path []*BeanDefinition, target *BeanDefinition) []string {
	var cycle []string
	for i, def := range path {
		if def == target {
			for _, d := range path[i:] {
				cycle = append(cycle, d.name)
			}
			break
		}
	}
	return append(cycle, target.name)
}

// cycleKey identifies a cycle regardless of the bean it was entered from.
func cycleKey(cycle []string) string {
	nodes := cycle[:len(cycle)-1]
	minIdx := 0
	for i, n := range nodes {
		if n < nodes[minIdx] {
			minIdx = i
		}
	}
	key := ""
	for i := range nodes {
		key += nodes[(minIdx+i)%len(nodes)] + ">"
	}
	return key
}

// atInjectionPoint records where a resolution error happened.
func atInjectionPoint(err error, def *BeanDefinition, point InjectionPoint) error {
	where := point.String() + " of " + def.String()
	switch e := err.(type) {
	case *UnsatisfiedDependencyError:
		c := *e
		c.InjectionPoint = where
		return &c
	case *AmbiguousResolutionError:
		c := *e
		c.InjectionPoint = where
		return &c
	}
	return err
}
