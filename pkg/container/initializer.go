package container

import (
	"log/slog"
	"time"
)

// singletonInitializer creates every singleton up front, dependencies first
type singletonInitializer struct {
	registry    *defaultBeanRegistry
	validator   GraphValidator
	scopes      *scopeManager
	initialized map[*BeanDefinition]bool
	initOrder   []string
	logger      *slog.Logger
}

func newSingletonInitializer(registry *defaultBeanRegistry, validator GraphValidator, scopes *scopeManager, logger *slog.Logger) *singletonInitializer {
	return &singletonInitializer{
		registry:    registry,
		validator:   validator,
		scopes:      scopes,
		initialized: make(map[*BeanDefinition]bool),
		logger:      logger,
	}
}

func (i *singletonInitializer) initBean(def *BeanDefinition, visited map[*BeanDefinition]bool, path []string) error {
	if i.initialized[def] {
		return nil
	}

	if visited[def] {
		return &CircularDependencyError{Cycle: append(path, def.name)}
	}

	// Mark as being visited (for cycle detection)
	visited[def] = true
	path = append(path, def.name)

	// Initialize dependencies first
	for _, dep := range i.validator.GetDependencies(def) {
		if err := i.initBean(dep, visited, path); err != nil {
			return err
		}
	}

	if def.scope == ScopeSingleton {
		if _, err := i.scopes.get(def); err != nil {
			return err
		}
		i.initOrder = append(i.initOrder, def.name)
	}

	i.initialized[def] = true
	delete(visited, def)
	return nil
}

// InitializeAll creates the singletons, stopping at the first failure
func (i *singletonInitializer) InitializeAll() error {
	i.logger.Info("Initializing singletons")
	start := time.Now()

	for _, def := range i.registry.Definitions() {
		if err := i.initBean(def, make(map[*BeanDefinition]bool), nil); err != nil {
			return err
		}
	}

	i.logger.Info("Singletons initialized",
		"count", len(i.initOrder),
		"order", i.GetInitOrder(),
		"time_ms", time.Since(start).Milliseconds())
	return nil
}

// GetInitOrder returns the names of the singletons in creation order
func (i *singletonInitializer) GetInitOrder() []string {
	// Return a copy to avoid external modification
	result := make([]string, len(i.initOrder))
	copy(result, i.initOrder)
	return result
}
