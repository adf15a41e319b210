package container

import "reflect"

// Module is a named group of classes registered together, optionally guarded
// by a condition. The module name is recorded on every definition it adds.
type Module struct {
	Name    string
	Classes []*ClassRef
	// Condition skips the whole module, nested modules included, when false.
	Condition Condition
	// Configure contributes classes computed at registration time, typically
	// from properties.
	Configure func(ConditionContext) ([]*ClassRef, error)
	// Modules are registered after Classes, each under its own name.
	Modules []Module
}

// NewModule creates an unconditional module
func NewModule(name string, classes ...*ClassRef) Module {
	return Module{Name: name, Classes: classes}
}

// When returns a copy of m guarded by condition, in addition to any existing one
func (m Module) When(condition Condition) Module {
	if m.Condition != nil {
		condition = AllOf(m.Condition, condition)
	}
	m.Condition = condition
	return m
}

// ConditionContext is what module conditions can inspect
type ConditionContext interface {
	// Property returns a property value and whether it is set
	Property(name string) (string, bool)
	// PropertiesWithPrefix returns the properties under prefix, prefix removed
	PropertiesWithPrefix(prefix string) map[string]string
	// HasClass reports whether a class is registered, or for interfaces whether
	// any registered class implements it
	HasClass(t reflect.Type) bool
}

// Condition decides whether a module is applied
type Condition func(ConditionContext) bool

// OnProperty checks if a property has a specific value
func OnProperty(name, value string) Condition {
	return func(ctx ConditionContext) bool {
		v, ok := ctx.Property(name)
		return ok && v == value
	}
}

// OnPropertyPresent checks if a property is set to a non-empty value
func OnPropertyPresent(name string) Condition {
	return func(ctx ConditionContext) bool {
		v, ok := ctx.Property(name)
		return ok && v != ""
	}
}

// OnMissingProperty checks if a property is absent
func OnMissingProperty(name string) Condition {
	return func(ctx ConditionContext) bool {
		_, ok := ctx.Property(name)
		return !ok
	}
}

// OnClass checks if a class is registered
func OnClass(t reflect.Type) Condition {
	return func(ctx ConditionContext) bool {
		return ctx.HasClass(t)
	}
}

// OnMissingClass checks if a class is not registered. Modules are applied after
// the classes registered directly, so this is the way to provide a default.
func OnMissingClass(t reflect.Type) Condition {
	return func(ctx ConditionContext) bool {
		return !ctx.HasClass(t)
	}
}

// AllOf is true when every condition is
func AllOf(conditions ...Condition) Condition {
	return func(ctx ConditionContext) bool {
		for _, c := range conditions {
			if c != nil && !c(ctx) {
				return false
			}
		}
		return true
	}
}

// AnyOf is true when at least one condition is
func AnyOf(conditions ...Condition) Condition {
	return func(ctx ConditionContext) bool {
		for _, c := range conditions {
			if c != nil && c(ctx) {
				return true
			}
		}
		return false
	}
}

// Not negates a condition
func Not(condition Condition) Condition {
	return func(ctx ConditionContext) bool {
		return !condition(ctx)
	}
}
